// Package flow is the interaction state machine. It routes every button
// press and free-text message through the per-user session, advances or
// rejects the flow, and hands completed requests to the background job
// runner.
package flow

import (
	"strconv"
	"strings"
)

// Family is the namespace prefix of a button action code. Codes travel on
// the wire as "<family>_<argument>".
type Family string

const (
	FamilyInstall   Family = "installnexttrace"
	FamilyRmServer  Family = "rmserver"
	FamilyTraceMode Family = "trace_mode"
	FamilyServer    Family = "server"
	FamilyCount     Family = "count"
	FamilyIPType    Family = "iptype"
)

// Literal (non-numeric) action arguments.
const (
	argCancel  = "cancel"
	argConfirm = "confirm"
	argAbort   = "abort"
)

// Action is a decoded button code.
type Action struct {
	Family Family
	Arg    string
}

// Code renders the wire form of the action.
func (a Action) Code() string {
	return string(a.Family) + "_" + a.Arg
}

// Index parses the argument as a decimal index or count.
func (a Action) Index() (int, bool) {
	n, err := strconv.Atoi(a.Arg)
	if err != nil {
		return 0, false
	}
	return n, true
}

// families in decode order. installnexttrace must come before server so a
// prefix match can never be claimed by a shorter family.
var families = []Family{
	FamilyInstall,
	FamilyRmServer,
	FamilyTraceMode,
	FamilyServer,
	FamilyCount,
	FamilyIPType,
}

// DecodeAction splits a raw callback payload into its family and argument.
// Unknown payloads return false; the caller drops them.
func DecodeAction(data string) (Action, bool) {
	for _, f := range families {
		prefix := string(f) + "_"
		if strings.HasPrefix(data, prefix) {
			return Action{Family: f, Arg: data[len(prefix):]}, true
		}
	}
	return Action{}, false
}
