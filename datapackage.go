package qci

import (
	"encoding/xml"
	"strings"
)

// DataPackage is one clinical test submission to be uploaded to QCI.
// It is built by the caller and never modified by the client.
type DataPackage struct {
	// AccessToken authorizes the upload. It is required.
	AccessToken string
	// PrimaryID identifies the sample, usually its accession ID. It is required.
	PrimaryID string
	// SecondaryID is an optional second identifier for the sample.
	SecondaryID string
}

// NewDataPackage creates a DataPackage for the given token and identifiers.
func NewDataPackage(accessToken, primaryID, secondaryID string) DataPackage {
	return DataPackage{
		AccessToken: accessToken,
		PrimaryID:   primaryID,
		SecondaryID: secondaryID,
	}
}

// Validate reports whether the package can be uploaded.
func (p DataPackage) Validate() error {
	if strings.TrimSpace(p.AccessToken) == "" {
		return ValidationError{ID: p.PrimaryID, Msg: "no access token set"}
	}
	if strings.TrimSpace(p.PrimaryID) == "" {
		return ValidationError{Msg: "no primary ID set"}
	}
	return nil
}

type dataPackageXML struct {
	XMLName     xml.Name `xml:"DataPackage"`
	PrimaryID   string   `xml:"PrimaryId"`
	SecondaryID string   `xml:"SecondaryId,omitempty"`
}

// ToXML renders the package as the XML document that is sent to QCI.
func (p DataPackage) ToXML() ([]byte, error) {
	body, err := xml.MarshalIndent(dataPackageXML{
		PrimaryID:   p.PrimaryID,
		SecondaryID: p.SecondaryID,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func (p DataPackage) String() string {
	return p.PrimaryID
}
