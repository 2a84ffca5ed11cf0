package capability

// Operation ids advertised by the backend for remote commands.
const (
	OpAccessLock              = "postAccessLock"
	OpAccessUnlock            = "postAccessUnlock"
	OpClimatisationStart      = "postClimatisationStart"
	OpClimatisationStop       = "postClimatisationStop"
	OpClimatisationSettings   = "putClimatisationSettings"
	OpChargingStart           = "postChargingStart"
	OpChargingStop            = "postChargingStop"
	OpChargingSettings        = "putChargingSettings"
	OpChargingCareSettings    = "putChargingCareSettings"
	OpHonkAndFlash            = "postHonkAndFlash"
	OpWindowHeatingStart      = "postWindowHeatingStart"
	OpWindowHeatingStop       = "postWindowHeatingStop"
	OpAuxiliaryHeatingStart   = "postAuxiliaryHeatingStart"
	OpAuxiliaryHeatingStop    = "postAuxiliaryHeatingStop"
	OpVehicleWakeUpTrigger    = "postVehicleWakeUpTrigger"
	OpReadinessBatterySupport = "putReadinessBatterySupport"
)
