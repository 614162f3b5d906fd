package test

import (
	"errors"
	"time"

	"github.com/etaoni/qci"
	"github.com/etaoni/qci/ledger"
)

var ErrorTest = errors.New("test")

const (
	AccessToken  = "test-token"
	ClientID     = "test-client-id"
	ClientSecret = "test-client-secret"

	StatusURLPrefix = "https://api.ingenuity.com/v1/datapackages/"
)

var SamplePDF = []byte("%PDF-1.4\n% sample report\n%%EOF\n")

const SampleReportXML = `<?xml version="1.0" encoding="UTF-8"?>
<report>
  <accession>DM-121212</accession>
  <age>54</age>
  <sex>female</sex>
  <ethnicity>unknown</ethnicity>
  <patientName>Jane Doe</patientName>
  <dateOfBirth>1969-04-02</dateOfBirth>
  <specimenId>14-375C</specimenId>
  <specimentBlock>A1</specimentBlock>
  <specimenCollectionDate>2023-11-20</specimenCollectionDate>
  <specimenDiagnosis>Adenocarcinoma</specimenDiagnosis>
  <primaryTumorSite>Lung</primaryTumorSite>
  <specimenType>FFPE</specimenType>
  <specimenDissection>Macro</specimenDissection>
  <orderingPhysicianName>Dr. Smith</orderingPhysicianName>
  <orderingPhysicianClient>General Hospital</orderingPhysicianClient>
  <orderingPhysicianFacilityName>Oncology</orderingPhysicianFacilityName>
  <pathologistName>Dr. Jones</pathologistName>
  <interpretation>Pathogenic EGFR variant detected.</interpretation>
  <variant>
    <chromosome>7</chromosome>
    <position>55259515</position>
    <reference>T</reference>
    <alternate>G</alternate>
    <genotype>Het</genotype>
    <assessment>Pathogenic</assessment>
    <phenotype>Lung cancer</phenotype>
    <allelefraction>0.42</allelefraction>
    <gene>EGFR</gene>
  </variant>
  <variant>
    <chromosome>12</chromosome>
    <position>25398284</position>
    <reference>C</reference>
    <alternate>T</alternate>
    <gene>KRAS</gene>
  </variant>
</report>
`

func NewDataPackage(primaryID string) qci.DataPackage {
	return qci.NewDataPackage(AccessToken, primaryID, "")
}

func NewSubmissionStatus(id, accessionID string) *qci.SubmissionStatus {
	return &qci.SubmissionStatus{
		Method:             "datapackage",
		Creator:            "lab@example.com",
		Users:              []string{"lab@example.com"},
		Title:              accessionID,
		AnalysisName:       accessionID,
		Status:             "PREPROCESSING",
		Stage:              "Validating",
		ResultsURL:         "https://variants.ingenuity.com/vcs/view/analysis/" + id,
		StatusURL:          StatusURLPrefix + id,
		PipelineName:       "QCI Somatic Cancer Pipeline",
		PercentageComplete: 20,
	}
}

func NewEntry(id, accessionID string, submittedAt time.Time) *ledger.Entry {
	return ledger.NewEntry(NewDataPackage(accessionID), NewSubmissionStatus(id, accessionID), submittedAt)
}
