// Package tokens approximates token counts for backends that do not
// meter their own usage. Counts are character-ratio estimates, good
// enough for reporting and accounting but not billing-grade.
package tokens
