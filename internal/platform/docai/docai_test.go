package docai

import (
	"context"
	"strings"
	"testing"
)

func TestBandFor(t *testing.T) {
	cases := []struct {
		confidence int
		want       ConfidenceBand
	}{
		{0, BandLow},
		{49, BandLow},
		{50, BandMedium},
		{79, BandMedium},
		{80, BandHigh},
		{100, BandHigh},
	}
	for _, c := range cases {
		if got := BandFor(c.confidence); got != c.want {
			t.Errorf("BandFor(%d) = %s, want %s", c.confidence, got, c.want)
		}
	}
}

func TestClassificationValidate(t *testing.T) {
	valid := Classification{DocumentType: DocTypeVisitSummary, Confidence: 78}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid classification rejected: %v", err)
	}

	outOfRange := Classification{DocumentType: DocTypeVisitSummary, Confidence: 101}
	if err := outOfRange.Validate(); err == nil {
		t.Error("confidence 101 accepted")
	}

	unknownType := Classification{DocumentType: "receipt", Confidence: 80}
	if err := unknownType.Validate(); err == nil {
		t.Error("unknown document type accepted")
	}

	lowNoExplanation := Classification{DocumentType: DocTypeOther, Confidence: 30}
	if err := lowNoExplanation.Validate(); err == nil {
		t.Error("low confidence without explanation accepted")
	}

	lowWithExplanation := Classification{DocumentType: DocTypeOther, Confidence: 30, Explanation: "blurry"}
	if err := lowWithExplanation.Validate(); err != nil {
		t.Errorf("low confidence with explanation rejected: %v", err)
	}
}

func TestStubClassify(t *testing.T) {
	stub := NewStub()
	ctx := context.Background()

	big := strings.Repeat("x", 500)

	c, err := stub.Classify(ctx, []byte(big), "image/jpeg")
	if err != nil {
		t.Fatalf("classify image: %v", err)
	}
	if c.DocumentType != DocTypeVaccinationRecord || c.Confidence != 92 || c.Band != BandHigh {
		t.Errorf("image classification = %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("stub produced invalid classification: %v", err)
	}

	c, err = stub.Classify(ctx, []byte(big), "application/pdf")
	if err != nil {
		t.Fatalf("classify pdf: %v", err)
	}
	if c.DocumentType != DocTypeVisitSummary || c.Band != BandMedium {
		t.Errorf("pdf classification = %+v", c)
	}

	c, err = stub.Classify(ctx, []byte("tiny"), "image/jpeg")
	if err != nil {
		t.Fatalf("classify tiny: %v", err)
	}
	if c.Band != BandLow {
		t.Errorf("tiny file band = %s, want low", c.Band)
	}
	if c.Explanation == "" {
		t.Error("low-confidence result has no explanation")
	}
}

func TestStubExtractByType(t *testing.T) {
	stub := NewStub()
	ctx := context.Background()

	set, err := stub.Extract(ctx, nil, DocTypeVaccinationRecord)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(set.Records) != 1 || set.Records[0].Kind != KindVaccination {
		t.Errorf("vaccination_record extraction = %+v", set.Records)
	}

	set, err = stub.Extract(ctx, nil, DocTypePrescription)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(set.Records) != 1 || set.Records[0].Kind != KindMedication {
		t.Errorf("prescription extraction = %+v", set.Records)
	}

	for _, r := range set.Records {
		if !r.Kind.Valid() {
			t.Errorf("stub produced unknown kind %q", r.Kind)
		}
	}
}
