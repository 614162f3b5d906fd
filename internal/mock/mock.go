package mock

import (
	"context"
	"errors"
	"time"

	"github.com/etaoni/qci"
	"github.com/etaoni/qci/internal/clock"
	"github.com/etaoni/qci/ledger"
)

var ErrNotImplemented = errors.New("not implemented")

type Client struct {
	GetAccessTokenFunc         func(ctx context.Context, params *qci.GetAccessTokenInput) (*qci.GetAccessTokenOutput, error)
	UploadDataPackageFunc      func(ctx context.Context, params *qci.UploadDataPackageInput) (*qci.UploadDataPackageOutput, error)
	GetSubmissionStatusFunc    func(ctx context.Context, params *qci.GetSubmissionStatusInput) (*qci.GetSubmissionStatusOutput, error)
	GetReportPDFFunc           func(ctx context.Context, params *qci.GetReportPDFInput) (*qci.GetReportPDFOutput, error)
	GetTestResultXMLFunc       func(ctx context.Context, params *qci.GetTestResultXMLInput) (*qci.GetTestResultXMLOutput, error)
	ListTestsFunc              func(ctx context.Context, params *qci.ListTestsInput) (*qci.ListTestsOutput, error)
	ShareTestFunc              func(ctx context.Context, params *qci.ShareTestInput) (*qci.ShareTestOutput, error)
	GetTestProductProfilesFunc func(ctx context.Context, params *qci.GetTestProductProfilesInput) (*qci.GetTestProductProfilesOutput, error)
}

func (m Client) GetAccessToken(ctx context.Context, params *qci.GetAccessTokenInput) (*qci.GetAccessTokenOutput, error) {
	if m.GetAccessTokenFunc != nil {
		return m.GetAccessTokenFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Client) UploadDataPackage(ctx context.Context, params *qci.UploadDataPackageInput) (*qci.UploadDataPackageOutput, error) {
	if m.UploadDataPackageFunc != nil {
		return m.UploadDataPackageFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Client) GetSubmissionStatus(ctx context.Context, params *qci.GetSubmissionStatusInput) (*qci.GetSubmissionStatusOutput, error) {
	if m.GetSubmissionStatusFunc != nil {
		return m.GetSubmissionStatusFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Client) GetReportPDF(ctx context.Context, params *qci.GetReportPDFInput) (*qci.GetReportPDFOutput, error) {
	if m.GetReportPDFFunc != nil {
		return m.GetReportPDFFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Client) GetTestResultXML(ctx context.Context, params *qci.GetTestResultXMLInput) (*qci.GetTestResultXMLOutput, error) {
	if m.GetTestResultXMLFunc != nil {
		return m.GetTestResultXMLFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Client) ListTests(ctx context.Context, params *qci.ListTestsInput) (*qci.ListTestsOutput, error) {
	if m.ListTestsFunc != nil {
		return m.ListTestsFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Client) ShareTest(ctx context.Context, params *qci.ShareTestInput) (*qci.ShareTestOutput, error) {
	if m.ShareTestFunc != nil {
		return m.ShareTestFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Client) GetTestProductProfiles(ctx context.Context, params *qci.GetTestProductProfilesInput) (*qci.GetTestProductProfilesOutput, error) {
	if m.GetTestProductProfilesFunc != nil {
		return m.GetTestProductProfilesFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

var SuccessfulMockClient = &Client{
	GetAccessTokenFunc: func(ctx context.Context, params *qci.GetAccessTokenInput) (*qci.GetAccessTokenOutput, error) {
		return &qci.GetAccessTokenOutput{AccessToken: "token"}, nil
	},
	UploadDataPackageFunc: func(ctx context.Context, params *qci.UploadDataPackageInput) (*qci.UploadDataPackageOutput, error) {
		return &qci.UploadDataPackageOutput{Status: &qci.SubmissionStatus{}}, nil
	},
	GetSubmissionStatusFunc: func(ctx context.Context, params *qci.GetSubmissionStatusInput) (*qci.GetSubmissionStatusOutput, error) {
		return &qci.GetSubmissionStatusOutput{Status: &qci.SubmissionStatus{}}, nil
	},
	GetReportPDFFunc: func(ctx context.Context, params *qci.GetReportPDFInput) (*qci.GetReportPDFOutput, error) {
		return &qci.GetReportPDFOutput{}, nil
	},
	GetTestResultXMLFunc: func(ctx context.Context, params *qci.GetTestResultXMLInput) (*qci.GetTestResultXMLOutput, error) {
		return &qci.GetTestResultXMLOutput{Report: &qci.Report{}}, nil
	},
	ListTestsFunc: func(ctx context.Context, params *qci.ListTestsInput) (*qci.ListTestsOutput, error) {
		return &qci.ListTestsOutput{}, nil
	},
	ShareTestFunc: func(ctx context.Context, params *qci.ShareTestInput) (*qci.ShareTestOutput, error) {
		return &qci.ShareTestOutput{}, nil
	},
	GetTestProductProfilesFunc: func(ctx context.Context, params *qci.GetTestProductProfilesInput) (*qci.GetTestProductProfilesOutput, error) {
		return &qci.GetTestProductProfilesOutput{}, nil
	},
}

type Store struct {
	RecordFunc       func(ctx context.Context, params *ledger.RecordInput) (*ledger.RecordOutput, error)
	GetFunc          func(ctx context.Context, params *ledger.GetInput) (*ledger.GetOutput, error)
	UpdateStatusFunc func(ctx context.Context, params *ledger.UpdateStatusInput) (*ledger.UpdateStatusOutput, error)
	ListFunc         func(ctx context.Context, params *ledger.ListInput) (*ledger.ListOutput, error)

	ListUnfinishedFunc func(ctx context.Context, params *ledger.ListUnfinishedInput) (*ledger.ListUnfinishedOutput, error)
}

func (m Store) Record(ctx context.Context, params *ledger.RecordInput) (*ledger.RecordOutput, error) {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Store) Get(ctx context.Context, params *ledger.GetInput) (*ledger.GetOutput, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Store) UpdateStatus(ctx context.Context, params *ledger.UpdateStatusInput) (*ledger.UpdateStatusOutput, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Store) List(ctx context.Context, params *ledger.ListInput) (*ledger.ListOutput, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Store) ListUnfinished(ctx context.Context, params *ledger.ListUnfinishedInput) (*ledger.ListUnfinishedOutput, error) {
	if m.ListUnfinishedFunc != nil {
		return m.ListUnfinishedFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

var SuccessfulMockStore = &Store{
	RecordFunc: func(ctx context.Context, params *ledger.RecordInput) (*ledger.RecordOutput, error) {
		return &ledger.RecordOutput{Entry: &ledger.Entry{}}, nil
	},
	GetFunc: func(ctx context.Context, params *ledger.GetInput) (*ledger.GetOutput, error) {
		return &ledger.GetOutput{Entry: &ledger.Entry{}}, nil
	},
	UpdateStatusFunc: func(ctx context.Context, params *ledger.UpdateStatusInput) (*ledger.UpdateStatusOutput, error) {
		return &ledger.UpdateStatusOutput{Entry: &ledger.Entry{}}, nil
	},
	ListFunc: func(ctx context.Context, params *ledger.ListInput) (*ledger.ListOutput, error) {
		return &ledger.ListOutput{}, nil
	},
	ListUnfinishedFunc: func(ctx context.Context, params *ledger.ListUnfinishedInput) (*ledger.ListUnfinishedOutput, error) {
		return &ledger.ListUnfinishedOutput{}, nil
	},
}

type Clock struct {
	T time.Time
}

func (m Clock) Now() time.Time {
	return m.T
}

func WithClock(clock clock.Clock) func(o *qci.ClientOptions) {
	return func(o *qci.ClientOptions) {
		if clock != nil {
			o.Clock = clock
		}
	}
}
