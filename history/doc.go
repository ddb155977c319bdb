// Package history keeps a searchable record of gateway activity.
//
// Store is a SQLite table of supervisor events fed through
// Store.Observer. ReadGatewayLogs reads the gateway's own log files from
// ~/.openclaw/logs so both can be shown and filtered together.
// ListSessions lists the agent conversations saved under
// ~/.openclaw/sessions.
package history
