package vehicle

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

// Component is the kind of entity an instrument represents in a home automation system.
type Component string

const (
	ComponentSensor        Component = "sensor"
	ComponentBinarySensor  Component = "binary_sensor"
	ComponentLock          Component = "lock"
	ComponentSwitch        Component = "switch"
	ComponentDeviceTracker Component = "device_tracker"
)

// ValueType is the JSON type an instrument expects at its path.
type ValueType int

const (
	TypeNumber ValueType = iota
	TypeString
	TypeBool
	TypeObject
	TypeArray
)

func (t ValueType) matches(value interface{}) bool {
	switch value.(type) {
	case json.Number, float64, int:
		return t == TypeNumber
	case string:
		return t == TypeString
	case bool:
		return t == TypeBool
	case map[string]interface{}:
		return t == TypeObject
	case []interface{}:
		return t == TypeArray
	}
	return false
}

// Instrument describes a value derived from the raw state.
type Instrument struct {
	Name       string
	Component  Component
	Capability protocol.Service
	Path       string
	Type       ValueType
	Unit       string
	// Convert maps the raw value to the reported value. Nil reports the raw value.
	Convert func(interface{}) interface{}
}

// Reading is the value of an instrument bound to a vehicle.
type Reading struct {
	Name      string      `json:"name"`
	Component Component   `json:"component"`
	Unit      string      `json:"unit,omitempty"`
	Value     interface{} `json:"value"`
	Supported bool        `json:"supported"`
}

func equals(want string) func(interface{}) interface{} {
	return func(value interface{}) interface{} {
		s, _ := value.(string)
		return strings.EqualFold(s, want)
	}
}

func notEquals(unwanted string) func(interface{}) interface{} {
	return func(value interface{}) interface{} {
		s, _ := value.(string)
		return !strings.EqualFold(s, unwanted)
	}
}

func kelvinToCelsius(value interface{}) interface{} {
	k, ok := toFloat(value)
	if !ok {
		return nil
	}
	return math.Round((k-273.15)*10) / 10
}

// anyOn returns true if any entry of a window heating status list is on.
func anyOn(value interface{}) interface{} {
	list, _ := value.([]interface{})
	for _, item := range list {
		entry, _ := item.(map[string]interface{})
		if state, _ := entry["windowHeatingState"].(string); strings.EqualFold(state, "on") {
			return true
		}
	}
	return false
}

func number(value interface{}) interface{} {
	if f, ok := toFloat(value); ok {
		return f
	}
	return nil
}

// Registry is the closed set of instruments.
var Registry = []Instrument{
	{Name: "door_locked", Component: ComponentLock, Capability: protocol.ServiceAccess,
		Path: "access.accessStatus.value.doorLockStatus", Type: TypeString, Convert: equals("locked")},
	{Name: "doors_and_windows_closed", Component: ComponentBinarySensor, Capability: protocol.ServiceAccess,
		Path: "access.accessStatus.value.overallStatus", Type: TypeString, Convert: equals("safe")},

	{Name: "battery_level", Component: ComponentSensor, Capability: protocol.ServiceCharging,
		Path: "charging.batteryStatus.value.currentSOC_pct", Type: TypeNumber, Unit: "%", Convert: number},
	{Name: "electric_range", Component: ComponentSensor, Capability: protocol.ServiceCharging,
		Path: "charging.batteryStatus.value.cruisingRangeElectric_km", Type: TypeNumber, Unit: "km", Convert: number},
	{Name: "charging", Component: ComponentSwitch, Capability: protocol.ServiceCharging,
		Path: "charging.chargingStatus.value.chargingState", Type: TypeString, Convert: equals("charging")},
	{Name: "charging_state", Component: ComponentSensor, Capability: protocol.ServiceCharging,
		Path: "charging.chargingStatus.value.chargingState", Type: TypeString},
	{Name: "charging_power", Component: ComponentSensor, Capability: protocol.ServiceCharging,
		Path: "charging.chargingStatus.value.chargePower_kW", Type: TypeNumber, Unit: "kW", Convert: number},
	{Name: "charging_rate", Component: ComponentSensor, Capability: protocol.ServiceCharging,
		Path: "charging.chargingStatus.value.chargeRate_kmph", Type: TypeNumber, Unit: "km/h", Convert: number},
	{Name: "charging_time_left", Component: ComponentSensor, Capability: protocol.ServiceCharging,
		Path: "charging.chargingStatus.value.remainingChargingTimeToComplete_min", Type: TypeNumber, Unit: "min", Convert: number},
	{Name: "charging_cable_connected", Component: ComponentBinarySensor, Capability: protocol.ServiceCharging,
		Path: "charging.plugStatus.value.plugConnectionState", Type: TypeString, Convert: equals("connected")},
	{Name: "charging_cable_locked", Component: ComponentBinarySensor, Capability: protocol.ServiceCharging,
		Path: "charging.plugStatus.value.plugLockState", Type: TypeString, Convert: equals("locked")},
	{Name: "external_power", Component: ComponentBinarySensor, Capability: protocol.ServiceCharging,
		Path: "charging.plugStatus.value.externalPower", Type: TypeString, Convert: notEquals("unavailable")},
	{Name: "battery_target_charge_level", Component: ComponentSensor, Capability: protocol.ServiceCharging,
		Path: "charging.chargingSettings.value.targetSOC_pct", Type: TypeNumber, Unit: "%", Convert: number},
	{Name: "charge_max_ac_setting", Component: ComponentSensor, Capability: protocol.ServiceCharging,
		Path: "charging.chargingSettings.value.maxChargeCurrentAC", Type: TypeString},
	{Name: "battery_care_mode", Component: ComponentSwitch, Capability: protocol.ServiceBatteryChargingCare,
		Path: "batteryChargingCare.chargingCareSettings.value.batteryCareMode", Type: TypeString, Convert: equals("activated")},
	{Name: "battery_support", Component: ComponentSwitch, Capability: protocol.ServiceBatterySupport,
		Path: "batterySupport.batterySupportStatus.value.batterySupport", Type: TypeString, Convert: equals("enabled")},

	{Name: "climatisation", Component: ComponentSwitch, Capability: protocol.ServiceClimatisation,
		Path: "climatisation.climatisationStatus.value.climatisationState", Type: TypeString, Convert: notEquals("off")},
	{Name: "climatisation_time_left", Component: ComponentSensor, Capability: protocol.ServiceClimatisation,
		Path: "climatisation.climatisationStatus.value.remainingClimatisationTime_min", Type: TypeNumber, Unit: "min", Convert: number},
	{Name: "climatisation_target_temperature", Component: ComponentSensor, Capability: protocol.ServiceClimatisation,
		Path: "climatisation.climatisationSettings.value.targetTemperature_C", Type: TypeNumber, Unit: "°C", Convert: number},
	{Name: "window_heater", Component: ComponentSwitch, Capability: protocol.ServiceClimatisation,
		Path: "climatisation.windowHeatingStatus.value.windowHeatingStatus", Type: TypeArray, Convert: anyOn},

	{Name: "odometer", Component: ComponentSensor, Capability: protocol.ServiceMeasurements,
		Path: "measurements.odometerStatus.value.odometer", Type: TypeNumber, Unit: "km", Convert: number},
	{Name: "combined_range", Component: ComponentSensor, Capability: protocol.ServiceMeasurements,
		Path: "measurements.rangeStatus.value.totalRange_km", Type: TypeNumber, Unit: "km", Convert: number},
	{Name: "fuel_level", Component: ComponentSensor, Capability: protocol.ServiceMeasurements,
		Path: "measurements.fuelLevelStatus.value.currentFuelLevel_pct", Type: TypeNumber, Unit: "%", Convert: number},
	{Name: "hv_battery_min_temperature", Component: ComponentSensor, Capability: protocol.ServiceMeasurements,
		Path: "measurements.temperatureBatteryStatus.value.temperatureHvBatteryMin_K", Type: TypeNumber, Unit: "°C", Convert: kelvinToCelsius},
	{Name: "hv_battery_max_temperature", Component: ComponentSensor, Capability: protocol.ServiceMeasurements,
		Path: "measurements.temperatureBatteryStatus.value.temperatureHvBatteryMax_K", Type: TypeNumber, Unit: "°C", Convert: kelvinToCelsius},
	{Name: "primary_engine_range", Component: ComponentSensor, Capability: protocol.ServiceFuelStatus,
		Path: "fuelStatus.rangeStatus.value.primaryEngine.remainingRange_km", Type: TypeNumber, Unit: "km", Convert: number},

	{Name: "service_inspection_days", Component: ComponentSensor, Capability: protocol.ServiceVehicleHealthInspection,
		Path: "vehicleHealthInspection.maintenanceStatus.value.inspectionDue_days", Type: TypeNumber, Unit: "d", Convert: number},
	{Name: "service_inspection_distance", Component: ComponentSensor, Capability: protocol.ServiceVehicleHealthInspection,
		Path: "vehicleHealthInspection.maintenanceStatus.value.inspectionDue_km", Type: TypeNumber, Unit: "km", Convert: number},
	{Name: "oil_inspection_days", Component: ComponentSensor, Capability: protocol.ServiceVehicleHealthInspection,
		Path: "vehicleHealthInspection.maintenanceStatus.value.oilServiceDue_days", Type: TypeNumber, Unit: "d", Convert: number},

	{Name: "online", Component: ComponentBinarySensor, Capability: protocol.ServiceReadiness,
		Path: "readiness.readinessStatus.value.connectionState.isOnline", Type: TypeBool},
	{Name: "lights", Component: ComponentBinarySensor, Capability: protocol.ServiceVehicleLights,
		Path: "vehicleLights.lightsStatus.value.lights", Type: TypeArray, Convert: lightsOn},

	{Name: "position", Component: ComponentDeviceTracker, Capability: protocol.ServiceParkingPosition,
		Path: StateParkingPosition, Type: TypeObject, Convert: position},
	{Name: "vehicle_moving", Component: ComponentBinarySensor, Capability: protocol.ServiceParkingPosition,
		Path: StateIsMoving, Type: TypeBool},

	{Name: "trip_last_distance", Component: ComponentSensor, Capability: protocol.ServiceTripStatistics,
		Path: StateTripLast + ".mileage_km", Type: TypeNumber, Unit: "km", Convert: number},
	{Name: "trip_last_average_speed", Component: ComponentSensor, Capability: protocol.ServiceTripStatistics,
		Path: StateTripLast + ".averageSpeed_kmph", Type: TypeNumber, Unit: "km/h", Convert: number},
	{Name: "trip_last_duration", Component: ComponentSensor, Capability: protocol.ServiceTripStatistics,
		Path: StateTripLast + ".travelTime", Type: TypeNumber, Unit: "min", Convert: number},
	{Name: "trip_longterm_distance", Component: ComponentSensor, Capability: protocol.ServiceTripStatistics,
		Path: StateTripLongTerm + ".mileage_km", Type: TypeNumber, Unit: "km", Convert: number},
	{Name: "trip_refuel_distance", Component: ComponentSensor, Capability: protocol.ServiceTripStatistics,
		Path: StateTripRefuel + ".mileage_km", Type: TypeNumber, Unit: "km", Convert: number},
}

func lightsOn(value interface{}) interface{} {
	list, _ := value.([]interface{})
	for _, item := range list {
		entry, _ := item.(map[string]interface{})
		if status, _ := entry["status"].(string); strings.EqualFold(status, "on") {
			return true
		}
	}
	return false
}

// position reports a parking position as {latitude, longitude}. An empty object (vehicle moving)
// yields nil.
func position(value interface{}) interface{} {
	doc, _ := value.(map[string]interface{})
	lat, ok1 := toFloat(doc["lat"])
	lon, ok2 := toFloat(doc["lon"])
	if !ok1 || !ok2 {
		return nil
	}
	return map[string]float64{"latitude": lat, "longitude": lon}
}

// FindInstrument returns the instrument called name.
func FindInstrument(name string) (Instrument, bool) {
	for _, instrument := range Registry {
		if instrument.Name == name {
			return instrument, true
		}
	}
	return Instrument{}, false
}

// Supported returns true if v's capabilities enable the instrument's capability and the raw state
// holds a value of the expected type at its path.
func (i Instrument) Supported(v *Vehicle) bool {
	_, ok := i.read(v)
	return ok
}

func (i Instrument) read(v *Vehicle) (interface{}, bool) {
	if !v.Capabilities().Enabled(string(i.Capability)) {
		return nil, false
	}
	raw, ok := v.Lookup(i.Path)
	if !ok || !i.Type.matches(raw) {
		return nil, false
	}
	if i.Convert != nil {
		return i.Convert(raw), true
	}
	return raw, true
}

// Read binds the instrument to v.
func (i Instrument) Read(v *Vehicle) Reading {
	reading := Reading{Name: i.Name, Component: i.Component, Unit: i.Unit}
	reading.Value, reading.Supported = i.read(v)
	return reading
}

// Instruments reads every instrument of the registry.
func (v *Vehicle) Instruments() []Reading {
	readings := make([]Reading, 0, len(Registry))
	for _, instrument := range Registry {
		readings = append(readings, instrument.Read(v))
	}
	return readings
}

// SupportedInstruments reads the instruments v supports.
func (v *Vehicle) SupportedInstruments() []Reading {
	var readings []Reading
	for _, reading := range v.Instruments() {
		if reading.Supported {
			readings = append(readings, reading)
		}
	}
	return readings
}

// Instrument reads the instrument called name. ok is false if no such instrument exists.
func (v *Vehicle) Instrument(name string) (reading Reading, ok bool) {
	instrument, ok := FindInstrument(name)
	if !ok {
		return Reading{}, false
	}
	return instrument.Read(v), true
}
