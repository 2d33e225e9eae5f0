// crm serves the CRM API and manages its table.
//
// # Commands
//
//	crm serve            Start the HTTP API
//	crm table create     Create the DynamoDB table and its GSI
//	crm table verify     Check the table's key schema and GSI
//	crm table schema     Print the table layout as YAML
//	crm doctor           Check AWS identity, table and bucket
//	crm version          Print the version
//
// Configuration is read from crm.yaml (see package config), overridden by
// CRM_* environment variables and flags.
package main

func main() {
	Execute()
}
