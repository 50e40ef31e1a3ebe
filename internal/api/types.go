package api

// ServiceParameter is one key/value pair in a remote-control request.
type ServiceParameter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RemoteControlRequest is the body of a remote-control command.
type RemoteControlRequest struct {
	Command           string             `json:"command"`
	ServiceID         string             `json:"serviceId"`
	ServiceParameters []ServiceParameter `json:"serviceParameters,omitempty"`
}

// TravelSchedule is one entry in a scheduled travel plan.
type TravelSchedule struct {
	StartTime   string `json:"startTime"` // "HH:MM"
	DaysOfWeek  []int  `json:"daysOfWeek,omitempty"`
	Preheat     bool   `json:"preheat,omitempty"`
	Temperature string `json:"temperature,omitempty"`
}

// TravelPlan is a scheduled-departure plan for a vehicle.
type TravelPlan struct {
	Enabled      bool             `json:"enabled"`
	ScheduleList []TravelSchedule `json:"scheduleList"`
}

// ChargingPlan is a scheduled-charging plan for a vehicle.
type ChargingPlan struct {
	Enabled     bool   `json:"enabled"`
	StartTime   string `json:"startTime,omitempty"` // "HH:MM"
	EndTime     string `json:"endTime,omitempty"`
	TargetLevel int    `json:"targetLevel,omitempty"` // percent
}

type loginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type loginResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

type vehicleListResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	List    []struct {
		VIN       string `json:"vin"`
		ModelName string `json:"modelName"`
	} `json:"list"`
}

type envelope struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}
