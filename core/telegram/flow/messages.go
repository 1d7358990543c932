package flow

import (
	"fmt"
	"strings"

	"github.com/Hamster-Prime/Network-Test-Bot/core/registry"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/sender"
)

// Texts shown around the interactive flows. Kept together so the wording
// stays consistent between the button and free-text paths.
const (
	msgNoPendingButton = "No operation is in progress. Start over with /ping or /nexttrace."
	msgNoPendingText   = "Start a flow first with /ping or /nexttrace."

	msgInstallMismatch   = "The current operation does not support installing NextTrace."
	msgRmServerMismatch  = "The current operation does not support removing servers."
	msgTraceModeMismatch = "The current operation does not support choosing a trace mode."
	msgServerMismatch    = "The current operation does not support choosing a server."
	msgCountMismatch     = "The current operation does not support choosing a ping count."
	msgIPTypeMismatch    = "The current operation does not support choosing an IP protocol."

	msgInstallCancelled  = "NextTrace installation cancelled."
	msgRmCancelled       = "Server removal cancelled."
	msgBadServerIndex    = "Invalid server index."
	msgPingIncomplete    = "Server or target information is incomplete. Start over with /ping."
	msgTraceIncomplete   = "Server or target information is incomplete. Start over with /nexttrace."
	msgPingLaunched      = "Request received, running ping in the background..."
	msgChooseCount       = "Choose how many pings to run:"
	msgChooseIPType      = "Choose the IP protocol type:"
	msgTargetAlreadySet  = "A target was already provided. Use the command again for another test."
	msgWizardCancelled   = "Add-server flow cancelled."
	msgNothingToCancel   = "Nothing to cancel."
	msgCancelled         = "Operation cancelled."
	msgNoServers         = "No servers are registered. Add one with /addserver."
	msgPortNotNumeric    = "The port must be a number, enter the SSH port again:"
	msgChooseServer      = "Choose a server:"
	msgChooseTraceMode   = "Choose a trace mode:"
	msgChooseRmServer    = "Choose a server to remove:"
	msgChooseInstall     = "Choose a server to install NextTrace on:"
	msgWizardStepOne     = "Step 1/5: enter a name for the new server:"
	msgCommandModeNoText = "Command mode does not take typed input. Use %s to run another test."
)

// wizardFooter trails every wizard prompt.
const wizardFooter = "\n\nSend /cancel at any time to stop."

func msgStaleServer(command string) string {
	return fmt.Sprintf("Invalid server index, the server list may have changed. Run %s again.", command)
}

func msgPickedServer(name string) string {
	return fmt.Sprintf("You picked %s.\nSend the target IP or hostname (for example 8.8.8.8 or google.com).", name)
}

func msgTraceLaunched(mode string) string {
	return fmt.Sprintf("Request received, running %s route trace in the background...", strings.ToUpper(mode))
}

func msgTraceDirect(target, mode string) string {
	return fmt.Sprintf("Target %s is an IP address, running %s route trace in the background...", target, strings.ToUpper(mode))
}

func msgInstalling(name string) string {
	return fmt.Sprintf("Installing NextTrace on %s...\nThis may take a while.", name)
}

func msgRmConfirm(srv registry.Server) string {
	return fmt.Sprintf("Remove this server?\n\nName: %s\nHost: %s\n\nThis cannot be undone.", srv.Name, srv.Addr())
}

func msgRmDone(srv registry.Server) string {
	return fmt.Sprintf("Removed server %s (host=%s).", srv.Name, srv.Host)
}

func msgWizardSummary(d registry.Server) string {
	return fmt.Sprintf(
		"Please confirm the new server:\n\nName: %s\nHost: %s\nPort: %d\nUsername: %s\nPassword: %s\n\nType yes to confirm, anything else to cancel.",
		d.Name, d.Host, d.Port, d.Username, strings.Repeat("*", len(d.Password)),
	)
}

// serverRows renders one button per registry entry, action "server_<idx>".
func serverRows(servers []registry.Server) [][]sender.Button {
	rows := make([][]sender.Button, 0, len(servers))
	for idx, srv := range servers {
		rows = append(rows, sender.Row(sender.Button{
			Label:  srv.Name,
			Action: Action{Family: FamilyServer, Arg: fmt.Sprint(idx)}.Code(),
		}))
	}
	return rows
}

// indexedRows renders one button per entry under family, plus a trailing
// cancel row. Used by the rmserver and install pickers.
func indexedRows(servers []registry.Server, family Family) [][]sender.Button {
	rows := make([][]sender.Button, 0, len(servers)+1)
	for idx, srv := range servers {
		rows = append(rows, sender.Row(sender.Button{
			Label:  srv.Name,
			Action: Action{Family: family, Arg: fmt.Sprint(idx)}.Code(),
		}))
	}
	rows = append(rows, sender.Row(sender.Button{
		Label:  "Cancel",
		Action: Action{Family: family, Arg: argCancel}.Code(),
	}))
	return rows
}

func countRows() [][]sender.Button {
	return [][]sender.Button{sender.Row(
		sender.Button{Label: "Ping 5 times", Action: Action{Family: FamilyCount, Arg: "5"}.Code()},
		sender.Button{Label: "Ping 10 times", Action: Action{Family: FamilyCount, Arg: "10"}.Code()},
		sender.Button{Label: "Ping 30 times", Action: Action{Family: FamilyCount, Arg: "30"}.Code()},
	)}
}

func traceModeRows() [][]sender.Button {
	return [][]sender.Button{sender.Row(
		sender.Button{Label: "ICMP", Action: Action{Family: FamilyTraceMode, Arg: "icmp"}.Code()},
		sender.Button{Label: "TCP", Action: Action{Family: FamilyTraceMode, Arg: "tcp"}.Code()},
	)}
}

func ipTypeRows() [][]sender.Button {
	return [][]sender.Button{sender.Row(
		sender.Button{Label: "IPv4", Action: Action{Family: FamilyIPType, Arg: "ipv4"}.Code()},
		sender.Button{Label: "IPv6", Action: Action{Family: FamilyIPType, Arg: "ipv6"}.Code()},
	)}
}

func rmConfirmRows() [][]sender.Button {
	return [][]sender.Button{sender.Row(
		sender.Button{Label: "Confirm removal", Action: Action{Family: FamilyRmServer, Arg: argConfirm}.Code()},
		sender.Button{Label: "Cancel", Action: Action{Family: FamilyRmServer, Arg: argAbort}.Code()},
	)}
}
