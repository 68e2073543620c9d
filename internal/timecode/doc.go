// Package timecode provides exact rational time values and the two textual
// encodings used by the supported timeline dialects: clock strings
// ("HH:MM:SS.mmm") and rational seconds ("N/Ds"). All arithmetic is exact;
// any conversion that would lose precision fails instead of rounding.
package timecode
