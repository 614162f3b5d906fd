package qci

// SubmissionStatus is the state of a data package as reported by QCI after upload
// and while its pipeline runs.
type SubmissionStatus struct {
	Method             string   `json:"method"`
	Creator            string   `json:"creator"`
	Users              []string `json:"users"`
	Title              string   `json:"title"`
	AnalysisName       string   `json:"analysis-name"`
	Status             string   `json:"status"`
	Stage              string   `json:"stage"`
	ResultsURL         string   `json:"results-url"`
	StatusURL          string   `json:"status-url"`
	PipelineName       string   `json:"pipeline-name"`
	PercentageComplete int      `json:"percentage-complete"`
	// The fields below are only present once the pipeline has finished.
	ResultsID          string `json:"results-id,omitempty"`
	ResultsRedirectURL string `json:"results-redirect-url,omitempty"`
	ExportURL          string `json:"export-url,omitempty"`
}

// TestSummary is one entry of the clinical test listing.
type TestSummary struct {
	DataPackageID  string `json:"dataPackageID"`
	AccessionID    string `json:"accessionID"`
	ApplicationURL string `json:"applicationUrl"`
	ExportURL      string `json:"exportUrl"`
	State          string `json:"state"`
	ReceivedDate   string `json:"receivedDate"`
}

// User is a QCI account a test can be shared with.
type User struct {
	Email string `json:"email"`
}

// TestProductProfile is a test product profile as returned by QCI. Its fields are
// defined by the remote service.
type TestProductProfile map[string]any

// TestState filters the clinical test listing.
type TestState string

const (
	TestStatePending     TestState = "pending"
	TestStateInReview    TestState = "in_review"
	TestStateNeedsReview TestState = "needs_review"
	TestStateFinal       TestState = "final"
)

func (s TestState) valid() bool {
	switch s {
	case "", TestStatePending, TestStateInReview, TestStateNeedsReview, TestStateFinal:
		return true
	}
	return false
}

// SortOrder orders the clinical test listing by received date.
type SortOrder string

const (
	SortReceivedDateAsc  SortOrder = "receivedDateAsc"
	SortReceivedDateDesc SortOrder = "receivedDateDesc"
)

func (s SortOrder) valid() bool {
	switch s {
	case "", SortReceivedDateAsc, SortReceivedDateDesc:
		return true
	}
	return false
}
