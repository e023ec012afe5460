package postgres

import _ "embed"

// Schema is the DDL of the financial_data table. The table is provisioned
// outside this service; tests use Schema to create it in a scratch database.
//
//go:embed schema.sql
var Schema string

// TableName is the table holding daily stock observations
const TableName = "financial_data"
