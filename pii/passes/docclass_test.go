package passes

import (
	"context"
	"strings"
	"testing"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

const invoiceText = `Facture No 2024-001
TVA CHE-116.281.710 MWST
Total: CHF 1'250.00
Paiement par IBAN CH93 0076 2011 6238 5295 7
Échéance: 30.04.2024`

func TestClassifyInvoice(t *testing.T) {
	docType, confidence := classifyDocument(invoiceText)
	if docType != DocInvoice {
		t.Errorf("docType = %s, want INVOICE", docType)
	}
	if confidence < minRuleConfidence {
		t.Errorf("confidence %f below rule gate", confidence)
	}
}

func TestClassifyUnknown(t *testing.T) {
	docType, _ := classifyDocument("nothing to see here")
	if docType != DocUnknown {
		t.Errorf("docType = %s, want UNKNOWN", docType)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"french", "Veuillez trouver la facture pour les services et le matériel", "fr"},
		{"german", "Bitte finden Sie die Rechnung für die Leistungen und die Teile", "de"},
		{"english", "Please find the invoice for the services and the materials", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectLanguage(tt.text); got != tt.want {
				t.Errorf("detectLanguage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocClassPublishesMetadata(t *testing.T) {
	p := NewDocClassificationPass()
	pctx := testPipelineContext()

	_, err := p.Execute(context.Background(), invoiceText, nil, pctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := pctx.Metadata[model.MetaDocumentType]; got != string(DocInvoice) {
		t.Errorf("document type metadata = %v, want INVOICE", got)
	}
	if pctx.Metadata[model.MetaDocumentLanguage] == nil {
		t.Error("language metadata missing")
	}
}

func TestDocClassExtractsInvoiceNumber(t *testing.T) {
	p := NewDocClassificationPass()
	out, err := p.Execute(context.Background(), invoiceText, nil, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range out {
		if e.Type == model.TypeInvoiceNumber && e.Text == "2024-001" {
			return
		}
	}
	t.Errorf("invoice number not extracted, got %+v", out)
}

func TestDocClassTagsZones(t *testing.T) {
	p := NewDocClassificationPass()
	text := invoiceText + strings.Repeat("\nfiller line", 50)
	entities := []model.Entity{
		model.NewEntity(model.TypeInvoiceNumber, "2024-001", 11, 19, 0.8, model.SourceRule),
	}

	out, err := p.Execute(context.Background(), text, entities, testPipelineContext())
	if err != nil {
		t.Fatal(err)
	}
	var tagged *model.Entity
	for i := range out {
		if out[i].Text == "2024-001" {
			tagged = &out[i]
			break
		}
	}
	if tagged == nil {
		t.Fatal("entity lost")
	}
	if tagged.Metadata["zone"] != zoneHeader {
		t.Errorf("zone = %q, want header", tagged.Metadata["zone"])
	}
}

func TestLanguageOverride(t *testing.T) {
	p := NewDocClassificationPass()
	pctx := testPipelineContext()
	pctx.Config.Language = "de"

	_, err := p.Execute(context.Background(), "Please find the invoice for the services", nil, pctx)
	if err != nil {
		t.Fatal(err)
	}
	if pctx.Language != "de" {
		t.Errorf("language = %q, want forced de", pctx.Language)
	}
}
