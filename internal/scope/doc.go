// Package scope decides how far every discovered event sits from the
// scan target. The Target holds the immutable pattern set supplied at
// scan start; the Classifier turns an event's value and lineage into a
// scope distance and the process/report verdicts derived from it.
package scope
