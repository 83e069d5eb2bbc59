/*
Package groups keeps the membership of Google Workspace groups in line with data warehouse queries.

gcp-to-groups can be used from the command line but is really intended to be run from a cron job to maintain
a set of mailing list groups from the member records held in BigQuery (or a Postgres, Trino or DuckDB
warehouse).

gcp-to-groups supports the following commands:

  - sync, to update one or more groups from the email addresses returned by a query
  - compare, to list the changes a sync would make without changing anything
  - get, to download the membership of a group as a TSV file
  - query, to run a warehouse query and store the result as a TSV file
  - version, to display the current version
*/
package groups
