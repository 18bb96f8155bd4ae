package profile

import "github.com/ledongthuc/pdf"

// pdfOpen is a seam for tests; the real implementation opens the file and
// returns a positioned reader.
var pdfOpen = pdf.Open
