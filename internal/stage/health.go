package stage

// Health describes a stage's readiness.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy builds a ready Health result.
func Healthy(name, detail string) Health {
	return Health{Name: name, Ready: true, Detail: detail}
}

// Unhealthy builds a not-ready Health result.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}
