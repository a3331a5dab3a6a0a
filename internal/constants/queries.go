package constants

const (
	GetAirlineByCode = `
	SELECT * FROM airlines
	WHERE UPPER(iata_code) = UPPER($1) OR UPPER(icao_code) = UPPER($1)
	LIMIT 1
	`

	TouchAirlineScrapedAt = `
	UPDATE airlines
	SET last_scraped_at = NOW(), updated_at = NOW()
	WHERE UPPER(iata_code) = UPPER($1) OR UPPER(icao_code) = UPPER($1)
	`

	ListEnabledAirlines = `
	SELECT * FROM airlines WHERE scrape_enabled = TRUE ORDER BY iata_code
	`

	// Airlines due for a scheduled refresh: enabled, never scraped or stale,
	// and without a live job already queued for them.
	ListDueAirlines = `
	SELECT a.* FROM airlines a
	WHERE a.scrape_enabled = TRUE
	  AND (a.last_scraped_at IS NULL OR a.last_scraped_at < NOW() - ($1 * INTERVAL '1 day'))
	  AND NOT EXISTS (
		SELECT 1 FROM scraping_jobs j
		WHERE j.airline_code = a.iata_code AND j.status IN ('pending', 'running')
	  )
	ORDER BY a.last_scraped_at ASC NULLS FIRST
	LIMIT $2
	`

	GetAircraftTypeByCode = `
	SELECT * FROM aircraft_types
	WHERE UPPER(iata_code) = UPPER($1) OR UPPER(icao_code) = UPPER($1)
	LIMIT 1
	`

	GetAircraftTypeByID = `
	SELECT * FROM aircraft_types WHERE id = $1
	`

	GetAircraftByRegistration = `
	SELECT * FROM aircraft WHERE UPPER(registration) = UPPER($1) LIMIT 1
	`

	GetCurrentConfiguration = `
	SELECT * FROM aircraft_configurations
	WHERE aircraft_id = $1 AND is_current = TRUE
	LIMIT 1
	`

	InsertAircraft = `
	INSERT INTO aircraft (
		current_airline_id,
		aircraft_type_id,
		registration,
		manufacturer_serial_number,
		delivery_date,
		age_years,
		status,
		last_seen_date,
		metadata,
		last_scraped_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	RETURNING id
	`

	// MSN and delivery date are write-once: an existing value always wins.
	// Status always overwrites; the remaining fields only overwrite when the
	// patch carries a value.
	UpdateAircraftByRegistration = `
	UPDATE aircraft SET
		current_airline_id         = COALESCE($2, current_airline_id),
		aircraft_type_id           = COALESCE($3, aircraft_type_id),
		manufacturer_serial_number = COALESCE(manufacturer_serial_number, $4),
		delivery_date              = COALESCE(delivery_date, $5),
		age_years                  = COALESCE($6, age_years),
		status                     = $7,
		last_seen_date             = COALESCE($8, last_seen_date),
		metadata                   = COALESCE($9, metadata),
		updated_at                 = NOW(),
		last_scraped_at            = NOW()
	WHERE UPPER(registration) = UPPER($1)
	RETURNING id
	`

	RetireCurrentConfigurations = `
	UPDATE aircraft_configurations SET is_current = FALSE
	WHERE aircraft_id = $1 AND is_current = TRUE
	`

	InsertConfiguration = `
	INSERT INTO aircraft_configurations (
		aircraft_id,
		class_first,
		class_business,
		class_premium_economy,
		class_economy,
		total_seats,
		is_current
	) VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	RETURNING id
	`
)

const (
	InsertScrapingJob = `
	INSERT INTO scraping_jobs (
		job_id,
		airline_code,
		airline_name,
		job_type,
		status,
		priority,
		result_summary
	) VALUES ($1, $2, $3, $4, 'pending', $5, $6)
	RETURNING id, created_at
	`

	// One eligible pending job, highest priority first, oldest first. The row
	// lock is held until the caller commits, and SKIP LOCKED keeps concurrent
	// leasers from blocking on or double-dispatching the same row.
	LeaseScrapingJob = `
	SELECT * FROM scraping_jobs
	WHERE status = 'pending'
	  AND COALESCE((result_summary->>'scheduled_at')::timestamptz, created_at) <= NOW()
	ORDER BY
		CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END,
		created_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
	`

	GetScrapingJobByJobID = `
	SELECT * FROM scraping_jobs WHERE job_id = $1 LIMIT 1
	`

	StartScrapingJob = `
	UPDATE scraping_jobs
	SET status = 'running', started_at = NOW(), updated_at = NOW()
	WHERE job_id = $1 AND status = 'pending'
	`

	CompleteScrapingJob = `
	UPDATE scraping_jobs SET
		status           = 'completed',
		completed_at     = NOW(),
		duration_seconds = EXTRACT(EPOCH FROM (NOW() - started_at)),
		discovered_count = $2,
		new_count        = $3,
		updated_count    = $4,
		error_count      = $5,
		progress         = 100,
		updated_at       = NOW()
	WHERE job_id = $1
	`

	FailScrapingJobRetry = `
	UPDATE scraping_jobs SET
		status         = 'pending',
		started_at     = NULL,
		error_message  = $2,
		result_summary = $3,
		updated_at     = NOW()
	WHERE job_id = $1
	`

	FailScrapingJobTerminal = `
	UPDATE scraping_jobs SET
		status           = 'failed',
		completed_at     = NOW(),
		duration_seconds = EXTRACT(EPOCH FROM (NOW() - COALESCE(started_at, created_at))),
		error_message    = $2,
		error_count      = error_count + 1,
		result_summary   = $3,
		updated_at       = NOW()
	WHERE job_id = $1
	`

	CancelScrapingJob = `
	UPDATE scraping_jobs
	SET status = 'cancelled', completed_at = NOW(), updated_at = NOW()
	WHERE job_id = $1 AND status IN ('pending', 'running')
	`

	CleanupOldScrapingJobs = `
	DELETE FROM scraping_jobs
	WHERE status IN ('completed', 'failed', 'cancelled')
	  AND created_at < NOW() - ($1 * INTERVAL '1 day')
	`

	// Jobs abandoned by a dead worker: still marked running long past the
	// stale timeout. Rows with retries left go back to pending, the rest fail.
	ListStaleRunningJobs = `
	SELECT * FROM scraping_jobs
	WHERE status = 'running' AND started_at < NOW() - ($1 * INTERVAL '1 minute')
	FOR UPDATE SKIP LOCKED
	`

	CountJobsByStatus = `
	SELECT status, COUNT(*) AS count FROM scraping_jobs GROUP BY status
	`
)

const (
	QueueCounters = `
	SELECT
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'running') AS running,
		COUNT(*) FILTER (WHERE status = 'completed' AND completed_at > NOW() - INTERVAL '24 hours') AS completed_24h,
		COUNT(*) FILTER (WHERE status = 'failed' AND completed_at > NOW() - INTERVAL '24 hours') AS failed_24h,
		COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '7 days') AS total_7d
	FROM scraping_jobs
	`

	RecentJobs = `
	SELECT * FROM scraping_jobs ORDER BY created_at DESC LIMIT $1
	`

	AirlineCoverage = `
	SELECT
		COUNT(*) FILTER (WHERE last_scraped_at IS NOT NULL) AS scraped,
		COUNT(*) FILTER (WHERE last_scraped_at IS NULL) AS never_scraped,
		COUNT(*) FILTER (WHERE last_scraped_at < NOW() - INTERVAL '30 days') AS stale
	FROM airlines
	WHERE scrape_enabled = TRUE
	`

	ConfidenceBuckets = `
	SELECT
		COUNT(*) FILTER (WHERE (metadata->>'confidence_score')::float >= 0.8) AS high,
		COUNT(*) FILTER (WHERE (metadata->>'confidence_score')::float >= 0.5 AND (metadata->>'confidence_score')::float < 0.8) AS medium,
		COUNT(*) FILTER (WHERE (metadata->>'confidence_score')::float < 0.5) AS low,
		COUNT(*) FILTER (WHERE metadata->>'confidence_score' IS NULL) AS unscored
	FROM aircraft
	`

	AverageJobDuration = `
	SELECT COALESCE(AVG(duration_seconds), 0) FROM scraping_jobs
	WHERE status = 'completed' AND completed_at > NOW() - INTERVAL '7 days'
	`
)
