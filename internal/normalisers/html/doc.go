// Package html normalises remote text fields that may carry HTML markup.
// It strips tags, scripts and styles, decodes entities, replaces URLs and
// email addresses with placeholders and collapses whitespace.
package html
