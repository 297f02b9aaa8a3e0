// Package pdf reads, decrypts, encrypts and writes PDF files.
//
// A PDF file is read into memory completely and all indirect objects are
// stored in a [Document].  Objects refer to each other through [Reference]
// values, which are keys into the Document's object table:
//
//	doc, err := pdf.Open("in.pdf", &pdf.ReaderOptions{Password: "secret"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	catalog, err := doc.Catalog()
//	...
//
// When a document is written, the objects are renumbered and, if
// requested, all strings and streams are encrypted using the standard
// security handler:
//
//	err = pdf.Write(w, doc, &pdf.WriterOptions{
//		Encryption: &pdf.Encryption{
//			UserPassword:  "u",
//			OwnerPassword: "o",
//			Policy:        pdf.DefaultPolicy(),
//		},
//	})
//
// The following types implement the native PDF object types.
// All of these implement the [Object] interface:
//
//	Array
//	Bool
//	Dict
//	Integer
//	Name
//	Real
//	Reference
//	*Stream
//	String
//
// Supported encryption schemes are RC4 with 40 to 128 bit keys, AES-128
// and AES-256 (revisions 2 to 6 of the standard security handler).
// Revision 5 is only supported for reading.
package pdf
