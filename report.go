package qci

import "encoding/xml"

// Report is the structured result of a test, parsed from the reportXml export.
type Report struct {
	XMLName                       xml.Name  `xml:"report" json:"-"`
	Accession                     string    `xml:"accession" json:"accession"`
	Age                           string    `xml:"age" json:"age,omitempty"`
	Sex                           string    `xml:"sex" json:"sex,omitempty"`
	Ethnicity                     string    `xml:"ethnicity" json:"ethnicity,omitempty"`
	PatientName                   string    `xml:"patientName" json:"patientName,omitempty"`
	DateOfBirth                   string    `xml:"dateOfBirth" json:"dateOfBirth,omitempty"`
	SpecimenID                    string    `xml:"specimenId" json:"specimenId,omitempty"`
	SpecimenBlock                 string    `xml:"specimentBlock" json:"specimentBlock,omitempty"`
	SpecimenCollectionDate        string    `xml:"specimenCollectionDate" json:"specimenCollectionDate,omitempty"`
	SpecimenDiagnosis             string    `xml:"specimenDiagnosis" json:"specimenDiagnosis,omitempty"`
	PrimaryTumorSite              string    `xml:"primaryTumorSite" json:"primaryTumorSite,omitempty"`
	SpecimenType                  string    `xml:"specimenType" json:"specimenType,omitempty"`
	SpecimenDissection            string    `xml:"specimenDissection" json:"specimenDissection,omitempty"`
	OrderingPhysicianName         string    `xml:"orderingPhysicianName" json:"orderingPhysicianName,omitempty"`
	OrderingPhysicianClient       string    `xml:"orderingPhysicianClient" json:"orderingPhysicianClient,omitempty"`
	OrderingPhysicianFacilityName string    `xml:"orderingPhysicianFacilityName" json:"orderingPhysicianFacilityName,omitempty"`
	PathologistName               string    `xml:"pathologistName" json:"pathologistName,omitempty"`
	Interpretation                string    `xml:"interpretation" json:"interpretation,omitempty"`
	Variants                      []Variant `xml:"variant" json:"variants"`
}

// Variant is a single reported genomic variant.
type Variant struct {
	Chromosome     string `xml:"chromosome" json:"chromosome"`
	Position       int64  `xml:"position" json:"position"`
	Reference      string `xml:"reference" json:"reference"`
	Alternate      string `xml:"alternate" json:"alternate"`
	Genotype       string `xml:"genotype" json:"genotype,omitempty"`
	Assessment     string `xml:"assessment" json:"assessment,omitempty"`
	Phenotype      string `xml:"phenotype" json:"phenotype,omitempty"`
	AlleleFraction string `xml:"allelefraction" json:"allelefraction,omitempty"`
	Gene           string `xml:"gene" json:"gene,omitempty"`
}

// ParseReport decodes a reportXml export.
func ParseReport(data []byte) (*Report, error) {
	var r Report
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, MalformedResponseError{Cause: err}
	}
	return &r, nil
}
