package observability

var (
	ReadingsTotal      = readingsCounter
	PersistedTotal     = persistedCounter
	RolloversTotal     = rolloverCounter
	CorruptedKeysTotal = corruptedCounter
	StepsToday         = stepsTodayGauge
)
