// Package blob stores uploaded media and rendered exports under relative
// keys such as "alice/exports/export_<uuid>.mp4".
//
// FSStore keeps blobs on the local filesystem and hands out time-limited
// download URLs signed as HS256 JWTs. The API server verifies those tokens
// before serving a blob.
package blob
