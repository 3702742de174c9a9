package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Certificate carries the fields printed on a participation certificate.
type Certificate struct {
	ParticipantName string
	TrainingTitle   string
	Program         string
	TrainingDate    string
	Issuer          string
}

// CertificateRenderer renders participation certificates as PDF documents.
type CertificateRenderer struct{}

// NewCertificateRenderer constructs a certificate renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render produces a single-page landscape certificate.
func (r *CertificateRenderer) Render(cert Certificate) ([]byte, error) {
	if cert.ParticipantName == "" || cert.TrainingTitle == "" {
		return nil, fmt.Errorf("certificate requires participant name and training title")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 26)
	pdf.CellFormat(0, 16, "CERTIFICATE OF PARTICIPATION", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "This is to certify that", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, cert.ParticipantName, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "has successfully attended the training", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, cert.TrainingTitle, "", 1, "C", false, 0, "")

	if cert.Program != "" {
		pdf.SetFont("Arial", "I", 12)
		pdf.CellFormat(0, 8, fmt.Sprintf("under the %s programme", cert.Program), "", 1, "C", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "", 12)
	if cert.TrainingDate != "" {
		pdf.CellFormat(0, 8, fmt.Sprintf("held on %s", cert.TrainingDate), "", 1, "C", false, 0, "")
	}

	pdf.Ln(14)
	if cert.Issuer != "" {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, cert.Issuer, "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
