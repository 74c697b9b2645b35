// Package subtitles owns the caption data model and the SRT codec.
//
// Serialize and Parse are exact inverses for any segment list that passes
// Validate: parsing the text Serialize produced yields the same start, end,
// and text for every segment. Timestamps are truncated to whole milliseconds
// when rendered. Document is the structured JSON form stored next to the
// cached SRT text.
package subtitles
