package protocol

// Service identifies a vendor feature area. The same identifiers are used as capability ids in the
// capabilities document and as job names in selective status requests.
type Service string

const (
	ServiceAccess                  Service = "access"
	ServiceAuxiliaryHeating        Service = "auxiliaryHeating"
	ServiceBatteryChargingCare     Service = "batteryChargingCare"
	ServiceBatterySupport          Service = "batterySupport"
	ServiceCharging                Service = "charging"
	ServiceClimatisation           Service = "climatisation"
	ServiceClimatisationTimers     Service = "climatisationTimers"
	ServiceDepartureProfiles       Service = "departureProfiles"
	ServiceDepartureTimers         Service = "departureTimers"
	ServiceFuelStatus              Service = "fuelStatus"
	ServiceHonkAndFlash            Service = "honkAndFlash"
	ServiceMeasurements            Service = "measurements"
	ServiceParkingPosition         Service = "parkingPosition"
	ServiceReadiness               Service = "readiness"
	ServiceTripStatistics          Service = "tripStatistics"
	ServiceUserCapabilities        Service = "userCapabilities"
	ServiceVehicleHealthInspection Service = "vehicleHealthInspection"
	ServiceVehicleLights           Service = "vehicleLights"
	ServiceVehicleWakeUp           Service = "vehicleWakeUpTrigger"
	ServiceWindowHeating           Service = "windowHeating"
)

// StatusServices lists the services requested from the selective status endpoint during a refresh,
// in request order.
var StatusServices = []Service{
	ServiceAccess,
	ServiceBatteryChargingCare,
	ServiceBatterySupport,
	ServiceCharging,
	ServiceClimatisation,
	ServiceClimatisationTimers,
	ServiceDepartureProfiles,
	ServiceDepartureTimers,
	ServiceFuelStatus,
	ServiceMeasurements,
	ServiceReadiness,
	ServiceVehicleLights,
	ServiceVehicleHealthInspection,
	ServiceUserCapabilities,
}

func (s Service) String() string {
	return string(s)
}
