package round

func survivors(entrants []Entrant) []Entrant {
	var alive []Entrant
	for _, e := range entrants {
		if !e.Eliminated() {
			alive = append(alive, e)
		}
	}
	return alive
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
