// Package classroom implements the remote client over the Google Classroom API.
//
// Courses, coursework, announcements, course materials and student
// submissions are listed one page at a time. Every payload is normalised
// into domain records before it leaves this package, and page tokens are
// wrapped in versioned cursors that the sync engine stores opaquely.
package classroom
