package stress

type (
	// Sent to update the total scenario count.
	EventSetScenarioTotal int

	// Sent when a scenario has started.
	EventRunningScenario string

	// Sent when a scenario has finished, successfully or not.
	EventFinishedScenario struct {
		Err      error
		Scenario string
	}

	// Sent when the run is over.
	EventDone struct {
		Err error
	}
)
