package openthings

// CommandBit marks a record as a command (write) rather than a report.
const CommandBit uint8 = 0x80

// Parameter identifiers used by Energenie MIHO devices and the extended
// firmware sensors.
const (
	ParamBatteryVoltage         uint8 = 0x01
	ParamIaq                    uint8 = 0x02
	ParamTvoc                   uint8 = 0x03
	ParamEtOH                   uint8 = 0x04
	ParamECo2                   uint8 = 0x05
	ParamCurrentLive            uint8 = 0x06
	ParamPhaseAngleLive         uint8 = 0x07
	ParamActivePowerLive        uint8 = 0x08
	ParamPowerFactorLive        uint8 = 0x09
	ParamReactivePowerLive      uint8 = 0x0A
	ParamApparentPowerLive      uint8 = 0x0B
	ParamCurrentNeutral         uint8 = 0x0C
	ParamPhaseAngleNeutral      uint8 = 0x0D
	ParamActivePowerNeutral     uint8 = 0x0E
	ParamPowerFactorNeutral     uint8 = 0x0F
	ParamReactivePowerNeutral   uint8 = 0x10
	ParamApparentPowerNeutral   uint8 = 0x11
	ParamAbsoluteActiveEnergy   uint8 = 0x12
	ParamAbsoluteReactiveEnergy uint8 = 0x13
	ParamForwardActiveEnergy    uint8 = 0x14
	ParamForwardReactiveEnergy  uint8 = 0x15
	ParamReverseActiveEnergy    uint8 = 0x16
	ParamReverseReactiveEnergy  uint8 = 0x17
	ParamBootloader             uint8 = 0x18

	ParamAlarm            uint8 = 0x21
	ParamDebugOutput      uint8 = 0x2D
	ParamIdentify         uint8 = 0x3F
	ParamSourceSelector   uint8 = 0x40
	ParamWaterDetector    uint8 = 0x41
	ParamGlassBreakage    uint8 = 0x42
	ParamClosures         uint8 = 0x43
	ParamDoorBell         uint8 = 0x44
	ParamEnergy           uint8 = 0x45
	ParamFallSensor       uint8 = 0x46
	ParamGasVolume        uint8 = 0x47
	ParamAirPressure      uint8 = 0x48
	ParamIlluminance      uint8 = 0x49
	ParamLevel            uint8 = 0x4C
	ParamRainfall         uint8 = 0x4D
	ParamApparentPower    uint8 = 0x50
	ParamPowerFactor      uint8 = 0x51
	ParamReportPeriod     uint8 = 0x52
	ParamSmokeDetector    uint8 = 0x53
	ParamTimeAndDate      uint8 = 0x54
	ParamVibration        uint8 = 0x56
	ParamWaterVolume      uint8 = 0x57
	ParamWindSpeed        uint8 = 0x58
	ParamGasPressure      uint8 = 0x61
	ParamBatteryLevel     uint8 = 0x62
	ParamCoDetector       uint8 = 0x63
	ParamDoorSensor       uint8 = 0x64
	ParamEmergency        uint8 = 0x65
	ParamFrequency        uint8 = 0x66
	ParamGasFlowRate      uint8 = 0x67
	ParamRelativeHumidity uint8 = 0x68
	ParamCurrent          uint8 = 0x69
	ParamJoin             uint8 = 0x6A
	ParamLightLevel       uint8 = 0x6C
	ParamMotionDetector   uint8 = 0x6D
	ParamOccupancy        uint8 = 0x6F
	ParamRealPower        uint8 = 0x70
	ParamReactivePower    uint8 = 0x71
	ParamRotationSpeed    uint8 = 0x72
	ParamSwitchState      uint8 = 0x73
	ParamTemperature      uint8 = 0x74
	ParamVoltage          uint8 = 0x76
	ParamWaterFlowRate    uint8 = 0x77
	ParamWaterPressure    uint8 = 0x78
	ParamTest             uint8 = 0xAA
)

// Parameter names a record's identifier.
type Parameter struct {
	ID    uint8
	Name  string
	Units string
}

func (p Parameter) IsCommand() bool {
	return p.ID&CommandBit != 0 && p.ID != ParamTest
}

// AsCommand returns the write/command variant of the parameter.
func (p Parameter) AsCommand() Parameter {
	p.ID |= CommandBit
	return p
}

func (p Parameter) String() string {
	if p.IsCommand() {
		return p.Name + "(cmd)"
	}
	return p.Name
}

var knownParameters = map[uint8]Parameter{
	ParamBatteryVoltage:         {Name: "BatteryVoltage", Units: "V"},
	ParamIaq:                    {Name: "Iaq"},
	ParamTvoc:                   {Name: "TVOC", Units: "mg/m^3"},
	ParamEtOH:                   {Name: "EtOH", Units: "ppm"},
	ParamECo2:                   {Name: "eCo2", Units: "ppm"},
	ParamCurrentLive:            {Name: "CurrentLive", Units: "A"},
	ParamPhaseAngleLive:         {Name: "PhaseAngleLive", Units: "deg"},
	ParamActivePowerLive:        {Name: "ActivePowerLive", Units: "W"},
	ParamPowerFactorLive:        {Name: "PowerFactorLive"},
	ParamReactivePowerLive:      {Name: "ReactivePowerLive", Units: "VAR"},
	ParamApparentPowerLive:      {Name: "ApparentPowerLive", Units: "VA"},
	ParamCurrentNeutral:         {Name: "CurrentNeutral", Units: "A"},
	ParamPhaseAngleNeutral:      {Name: "PhaseAngleNeutral", Units: "deg"},
	ParamActivePowerNeutral:     {Name: "ActivePowerNeutral", Units: "W"},
	ParamPowerFactorNeutral:     {Name: "PowerFactorNeutral"},
	ParamReactivePowerNeutral:   {Name: "ReactivePowerNeutral", Units: "VAR"},
	ParamApparentPowerNeutral:   {Name: "ApparentPowerNeutral", Units: "VA"},
	ParamAbsoluteActiveEnergy:   {Name: "AbsoluteActiveEnergy", Units: "kWh"},
	ParamAbsoluteReactiveEnergy: {Name: "AbsoluteReactiveEnergy", Units: "kVARh"},
	ParamForwardActiveEnergy:    {Name: "ForwardActiveEnergy", Units: "kWh"},
	ParamForwardReactiveEnergy:  {Name: "ForwardReactiveEnergy", Units: "kVARh"},
	ParamReverseActiveEnergy:    {Name: "ReverseActiveEnergy", Units: "kWh"},
	ParamReverseReactiveEnergy:  {Name: "ReverseReactiveEnergy", Units: "kVARh"},
	ParamBootloader:             {Name: "Bootloader"},

	ParamAlarm:            {Name: "Alarm"},
	ParamDebugOutput:      {Name: "DebugOutput"},
	ParamIdentify:         {Name: "Identify"},
	ParamSourceSelector:   {Name: "SourceSelector"},
	ParamWaterDetector:    {Name: "WaterDetector"},
	ParamGlassBreakage:    {Name: "GlassBreakage"},
	ParamClosures:         {Name: "Closures"},
	ParamDoorBell:         {Name: "DoorBell"},
	ParamEnergy:           {Name: "Energy", Units: "kWh"},
	ParamFallSensor:       {Name: "FallSensor"},
	ParamGasVolume:        {Name: "GasVolume", Units: "m3"},
	ParamAirPressure:      {Name: "AirPressure", Units: "mbar"},
	ParamIlluminance:      {Name: "Illuminance", Units: "Lux"},
	ParamLevel:            {Name: "Level"},
	ParamRainfall:         {Name: "Rainfall", Units: "mm"},
	ParamApparentPower:    {Name: "ApparentPower", Units: "VA"},
	ParamPowerFactor:      {Name: "PowerFactor"},
	ParamReportPeriod:     {Name: "ReportPeriod", Units: "s"},
	ParamSmokeDetector:    {Name: "SmokeDetector"},
	ParamTimeAndDate:      {Name: "TimeAndDate", Units: "s"},
	ParamVibration:        {Name: "Vibration"},
	ParamWaterVolume:      {Name: "WaterVolume", Units: "l"},
	ParamWindSpeed:        {Name: "WindSpeed", Units: "m/s"},
	ParamGasPressure:      {Name: "GasPressure", Units: "Pa"},
	ParamBatteryLevel:     {Name: "BatteryLevel", Units: "V"},
	ParamCoDetector:       {Name: "CoDetector"},
	ParamDoorSensor:       {Name: "DoorSensor"},
	ParamEmergency:        {Name: "Emergency"},
	ParamFrequency:        {Name: "Frequency", Units: "Hz"},
	ParamGasFlowRate:      {Name: "GasFlowRate", Units: "m3/hr"},
	ParamRelativeHumidity: {Name: "RelativeHumidity", Units: "%"},
	ParamCurrent:          {Name: "Current", Units: "A"},
	ParamJoin:             {Name: "Join"},
	ParamLightLevel:       {Name: "LightLevel"},
	ParamMotionDetector:   {Name: "MotionDetector"},
	ParamOccupancy:        {Name: "Occupancy"},
	ParamRealPower:        {Name: "RealPower", Units: "W"},
	ParamReactivePower:    {Name: "ReactivePower", Units: "VAR"},
	ParamRotationSpeed:    {Name: "RotationSpeed", Units: "RPM"},
	ParamSwitchState:      {Name: "SwitchState"},
	ParamTemperature:      {Name: "Temperature", Units: "C"},
	ParamVoltage:          {Name: "Voltage", Units: "V"},
	ParamWaterFlowRate:    {Name: "WaterFlowRate", Units: "l/hr"},
	ParamWaterPressure:    {Name: "WaterPressure", Units: "Pa"},
	ParamTest:             {Name: "Test"},
}

// LookupParameter resolves an on-air identifier, keeping the command bit.
func LookupParameter(id uint8) Parameter {
	if p, ok := knownParameters[id]; ok {
		p.ID = id
		return p
	}
	p, ok := knownParameters[id&^CommandBit]
	if !ok {
		return Parameter{ID: id, Name: "Unknown"}
	}
	p.ID = id
	return p
}

// IdentifyCommand asks a device to flash its indicator.
func IdentifyCommand() Parameter {
	return LookupParameter(ParamIdentify).AsCommand()
}

// BootloaderCommand makes an extended-firmware device reboot into its OTA
// bootloader.
func BootloaderCommand() Parameter {
	return LookupParameter(ParamBootloader).AsCommand()
}

// ReportPeriodCommand writes a device's periodic report interval.
func ReportPeriodCommand() Parameter {
	return LookupParameter(ParamReportPeriod).AsCommand()
}
