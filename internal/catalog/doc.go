// Package catalog holds the pure rules of the course catalog: the id-keyed
// prerequisite adjacency, the cycle guard evaluated before every new edge, the
// teacher-load validator, and the course code and credit rules.
//
// Nothing in this package performs I/O or locking. Callers evaluate these rules
// inside the unit of work that commits the corresponding change.
package catalog
