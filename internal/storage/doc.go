// Package storage is the in-process stand-in for the system under test:
// a linearizable register store plus an HTTP front end that is
// wire-faithful to the v2 keys API the client adapter speaks.
//
// Tests compose them into a fake cluster: several Servers over one
// RegisterStore behave like a healthy deployment, and SetReachable lets
// a test sever a node the way a partition would, with requests hanging
// until the client gives up rather than being refused.
package storage
