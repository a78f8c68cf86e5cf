// Package command generates single-table SQL statements from reflected
// entity descriptions.
//
// Every builder is a pure function. Values are never spliced into the SQL
// text; they travel as positional arguments next to '?' placeholders and
// are converted with Bind so that every semantic type stores the same way
// regardless of the Go type holding it.
//
// Statement.Inline renders the literal-embedded form of a statement, with
// each argument passed through Literal. It exists for logging and for
// tooling that needs a self-contained SQL string. Literal refuses blobs
// with ErrUnsupportedValue; bound execution supports them.
package command
