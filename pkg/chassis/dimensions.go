package chassis

import "math"

const (
	// Wheel as measured for the slotted encoder discs.
	WheelDiameterMM float64 = 56.5
	WheelRadiusCM           = WheelDiameterMM / 20
	WheelCircumMM           = WheelDiameterMM * math.Pi

	EncoderTicksPerRev = 32

	// Nominal figures used by the feedback-servo calibration maths.
	FeedbackWheelDiameterMM float64 = 50
	FeedbackUnitsPerRev             = 360

	BotWidthMM float64 = 205
)

var (
	TickLengthMM = WheelCircumMM / EncoderTicksPerRev

	// Distance each wheel travels for a full pivot on the spot.
	PivotCircumMM = math.Pi * BotWidthMM
)
