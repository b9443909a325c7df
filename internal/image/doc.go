// Package image admits inline image payloads submitted with a record.
//
// A payload is a base64 data URI (`data:image/<fmt>;base64,...`) with fmt one
// of png, jpeg, jpg, gif, bmp. Admit decodes it, scales it to a fixed
// 400×400, and writes the derived PNG under a unique name in the uploads
// directory. Any failure surfaces before the record store is touched;
// validation failures wrap ErrBadFormat so the HTTP layer can answer 400.
package image
