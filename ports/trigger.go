package ports

// TriggerCode is an event marker sent to the recording system.
type TriggerCode int

const (
	TriggerSessionStart   TriggerCode = 2
	TriggerBlockEnd       TriggerCode = 3
	TriggerNoResponse     TriggerCode = 4
	TriggerCorrectLeft    TriggerCode = 5
	TriggerIncorrectLeft  TriggerCode = 6
	TriggerCorrectRight   TriggerCode = 7
	TriggerIncorrectRight TriggerCode = 8
	TriggerBlockStart     TriggerCode = 9
)

// TriggerPort pulses an event marker line
type TriggerPort interface {
	Send(code TriggerCode) error
}
