// Package discovery resolves SCRAM server endpoints registered in a
// ZooKeeper namespace. Each child znode of /<namespace> names one server as
// semicolon-separated key=value pairs, for example
//
//	serverUri=auth1.internal:7443;version=2.1;sequence=0000000007
//
// Children without a usable serverUri are skipped.
package discovery
