package cmd

import (
	"encoding/json"
	"fmt"
	"io"
)

func printMessageWithData(w io.Writer, message string, data any) error {
	dump, err := marshalIndent(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s%s\n", message, dump)
	return err
}

func marshalIndent(v any) ([]byte, error) {
	dump, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return dump, nil
}

func printError(w io.Writer, err any) {
	_, _ = fmt.Fprintf(w, "ERROR: %v\n", err)
}

func errorWithID(err error, id string) error {
	return fmt.Errorf("%w, ID: %s", err, id)
}
