package postgres

// Session statements run on the acquired connection around each request.
const (
	// querySessionSettings applies request options to the session: $1 is the
	// statement timeout in milliseconds, $2 the application name.
	querySessionSettings = `
		SELECT
			set_config('statement_timeout', $1, false),
			set_config('application_name', $2, false)`

	queryResetSession = `RESET ALL`
)
