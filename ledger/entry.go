package ledger

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/etaoni/qci"
	"github.com/etaoni/qci/internal/clock"
)

// Entry is the ledger record of one submitted data package.
type Entry struct {
	ID                 string `json:"id" dynamodbav:"id"`
	AccessionID        string `json:"accession_id" dynamodbav:"accession_id"`
	SecondaryID        string `json:"secondary_id,omitempty" dynamodbav:"secondary_id,omitempty"`
	AnalysisName       string `json:"analysis_name,omitempty" dynamodbav:"analysis_name,omitempty"`
	PipelineName       string `json:"pipeline_name,omitempty" dynamodbav:"pipeline_name,omitempty"`
	Status             string `json:"status" dynamodbav:"status"`
	Stage              string `json:"stage" dynamodbav:"stage"`
	PercentageComplete int    `json:"percentage_complete" dynamodbav:"percentage_complete"`
	StatusURL          string `json:"status_url,omitempty" dynamodbav:"status_url,omitempty"`
	ExportURL          string `json:"export_url,omitempty" dynamodbav:"export_url,omitempty"`
	SubmittedAt        string `json:"submitted_at" dynamodbav:"submitted_at"`
	UpdatedAt          string `json:"updated_at" dynamodbav:"updated_at"`
	Version            int    `json:"version" dynamodbav:"version"`
}

// NewEntry builds the ledger entry of a data package that was just uploaded.
// The entry ID is the data package ID found at the end of the status URL.
func NewEntry(pkg qci.DataPackage, status *qci.SubmissionStatus, now time.Time) *Entry {
	ts := clock.FormatRFC3339Nano(now)
	e := &Entry{
		ID:          DataPackageID(status),
		AccessionID: pkg.PrimaryID,
		SecondaryID: pkg.SecondaryID,
		SubmittedAt: ts,
		UpdatedAt:   ts,
		Version:     1,
	}
	if status != nil {
		e.AnalysisName = status.AnalysisName
		e.PipelineName = status.PipelineName
		e.Status = status.Status
		e.Stage = status.Stage
		e.PercentageComplete = status.PercentageComplete
		e.StatusURL = status.StatusURL
		e.ExportURL = status.ExportURL
	}
	return e
}

// DataPackageID extracts the data package ID from the status URL of a submission,
// e.g. DP_727658804867835145738 from https://api.ingenuity.com/v1/datapackages/DP_727658804867835145738.
func DataPackageID(status *qci.SubmissionStatus) string {
	if status == nil || status.StatusURL == "" {
		return ""
	}
	u, err := url.Parse(status.StatusURL)
	if err != nil {
		return ""
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "." || id == "/" {
		return ""
	}
	return id
}

// Pipeline states after which the status of a data package no longer changes.
const (
	StatusDone   = "DONE"
	StatusFailed = "FAILED"
	StatusError  = "ERROR"
)

// Finished reports whether the pipeline of the data package has ended.
func (e *Entry) Finished() bool {
	switch strings.ToUpper(e.Status) {
	case StatusDone, StatusFailed, StatusError:
		return true
	}
	return false
}

func (e *Entry) applyStatus(status *qci.SubmissionStatus, now time.Time) {
	e.Status = status.Status
	e.Stage = status.Stage
	e.PercentageComplete = status.PercentageComplete
	if status.ExportURL != "" {
		e.ExportURL = status.ExportURL
	}
	e.UpdatedAt = clock.FormatRFC3339Nano(now)
}
