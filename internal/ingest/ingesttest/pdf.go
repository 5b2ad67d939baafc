// Package ingesttest builds small PDF documents for tests.
package ingesttest

import (
	"bytes"
	"fmt"
	"strings"
)

// PDF returns a valid PDF with one page per argument, each page showing its
// text in a single line of Helvetica.
func PDF(pages ...string) []byte {
	n := len(pages)
	// objects: 1 catalog, 2 pages, 3 font, then a page + content pair per page
	var objects []string
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", escape(text))
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// BadXref returns PDF(pages...) with a startxref offset past the end of the
// file. The header looks valid, so parsing fails only once the xref table is
// read.
func BadXref(pages ...string) []byte {
	data := PDF(pages...)
	i := bytes.LastIndex(data, []byte("startxref"))
	out := append([]byte{}, data[:i]...)
	return fmt.Appendf(out, "startxref\n%d\n%%%%EOF\n", len(data)+8192)
}

// Corrupted returns bytes that no PDF parser accepts.
func Corrupted() []byte {
	return []byte("this is not a pdf document\x00\x01\x02")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
