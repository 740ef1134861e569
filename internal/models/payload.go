package models

// WeekPayload is the body returned by the week endpoint. Sessions arrive in
// no guaranteed order.
type WeekPayload struct {
	Workouts      []WorkoutSession       `json:"workouts"`
	Strengthening []StrengtheningSession `json:"strengthening"`
}

// Sessions flattens the payload into one list of variants.
func (p WeekPayload) Sessions() []Session {
	out := make([]Session, 0, len(p.Workouts)+len(p.Strengthening))
	for _, w := range p.Workouts {
		out = append(out, w)
	}
	for _, s := range p.Strengthening {
		out = append(out, s)
	}
	return out
}

// PayloadOf splits a snapshot back into the wire shape.
func PayloadOf(w WeekSnapshot) WeekPayload {
	p := WeekPayload{
		Workouts:      []WorkoutSession{},
		Strengthening: []StrengtheningSession{},
	}
	for _, s := range w.sessions {
		Match(s,
			func(ws WorkoutSession) struct{} {
				p.Workouts = append(p.Workouts, ws)
				return struct{}{}
			},
			func(ss StrengtheningSession) struct{} {
				p.Strengthening = append(p.Strengthening, ss)
				return struct{}{}
			},
		)
	}
	return p
}
