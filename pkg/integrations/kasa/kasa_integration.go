package kasa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

const (
	KasaMetricType_Devices domain.MetricType = "devices"
	KasaMetricType_Energy  domain.MetricType = "energy"

	KasaActionType_PowerOn  domain.ActionType = "power-on"
	KasaActionType_PowerOff domain.ActionType = "power-off"
)

// Cloud error codes that mean the cached token is no longer accepted. The
// cloud reports these in-band with HTTP 200, so the adapter does its own
// invalidate-and-retry-once instead of keying off the status code.
const (
	errCodeTokenExpired = -20651
	errCodeTokenInvalid = -20675
)

const (
	// Enrichment bounds for per-device calls.
	maxTrackedDevices = 10
	enrichConcurrent  = 4
)

var actionTypes = []domain.ActionType{
	KasaActionType_PowerOff,
	KasaActionType_PowerOn,
}

type KasaIntegrationCreator struct {
	deps domain.IntegrationDeps
}

func NewKasaIntegrationCreator(deps domain.IntegrationDeps) domain.IntegrationCreator {
	return &KasaIntegrationCreator{deps: deps}
}

func (c *KasaIntegrationCreator) CreateIntegration(ctx context.Context, p domain.CreateIntegrationParams) (domain.IntegrationExecutor, error) {
	return NewKasaIntegration(ctx, KasaIntegrationDependencies{
		Config: p.Config,
		Deps:   c.deps,
	})
}

type KasaIntegration struct {
	config        domain.IntegrationConfig
	authenticator domain.SessionAuthenticator
	httpProvider  domain.HTTPClientProvider

	metricManager *domain.MetricHandlerManager
}

type KasaIntegrationDependencies struct {
	Config domain.IntegrationConfig
	Deps   domain.IntegrationDeps
}

// NewLoginStrategy builds the keygen exchange against the Kasa cloud login
// endpoint. The returned token stays valid for roughly a day.
func NewLoginStrategy(provider domain.HTTPClientProvider) managers.KeygenExchangeStrategy {
	return managers.KeygenExchangeStrategy{
		HTTPClientProvider: provider,
		KeygenURL: func(config domain.IntegrationConfig) string {
			return config.BaseURL()
		},
		BuildBody: func(config domain.IntegrationConfig) (any, error) {
			if config.Username == "" || config.Password == "" {
				return nil, &domain.ConfigurationError{Field: "username"}
			}

			return map[string]any{
				"method": "login",
				"params": map[string]any{
					"appType":       "Kasa_Android",
					"cloudUserName": config.Username,
					"cloudPassword": config.Password,
					"terminalUUID":  config.Identity(),
				},
			}, nil
		},
		ExtractKey: func(body []byte) (string, error) {
			var loginResp struct {
				ErrorCode int    `json:"error_code"`
				Message   string `json:"msg"`
				Result    struct {
					Token string `json:"token"`
				} `json:"result"`
			}

			if err := json.Unmarshal(body, &loginResp); err != nil {
				return "", fmt.Errorf("failed to decode login response: %w", err)
			}

			if loginResp.ErrorCode != 0 {
				return "", fmt.Errorf("cloud login failed (code %d): %s", loginResp.ErrorCode, loginResp.Message)
			}

			return loginResp.Result.Token, nil
		},
	}
}

func NewKasaIntegration(ctx context.Context, deps KasaIntegrationDependencies) (*KasaIntegration, error) {
	if deps.Config.Username == "" || deps.Config.Password == "" {
		return nil, &domain.ConfigurationError{Field: "username"}
	}

	integration := &KasaIntegration{
		config: deps.Config,
		authenticator: managers.NewSessionAuthenticator(managers.SessionAuthenticatorDependencies{
			Cache:    deps.Deps.CredentialCache,
			Strategy: NewLoginStrategy(deps.Deps.HTTPClientProvider),
		}),
		httpProvider: deps.Deps.HTTPClientProvider,
	}

	integration.metricManager = domain.NewMetricHandlerManager().
		Add(KasaMetricType_Devices, integration.Devices).
		Add(KasaMetricType_Energy, integration.Energy)

	return integration, nil
}

func (i *KasaIntegration) GetData(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	return i.metricManager.Run(ctx, params.MetricType, params)
}

type cloudResponse struct {
	ErrorCode int             `json:"error_code"`
	Message   string          `json:"msg"`
	Result    json.RawMessage `json:"result"`
}

// cloudRPC posts one cloud request with the cached token. On a token-expired
// error code the token is invalidated and re-obtained exactly once.
func (i *KasaIntegration) cloudRPC(ctx context.Context, targetURL string, payload any, result any) error {
	credential, err := i.authenticator.EnsureCredential(ctx, i.config)
	if err != nil {
		return err
	}

	resp, err := i.postCloud(ctx, targetURL, credential.Material, payload)
	if err != nil {
		return err
	}

	if resp.ErrorCode == errCodeTokenExpired || resp.ErrorCode == errCodeTokenInvalid {
		log.Debug().Str("instance", i.config.ID).Int("code", resp.ErrorCode).Msg("cloud token rejected, re-authenticating once")

		i.authenticator.InvalidateCredential(i.config)

		credential, err = i.authenticator.EnsureCredential(ctx, i.config)
		if err != nil {
			return err
		}

		resp, err = i.postCloud(ctx, targetURL, credential.Material, payload)
		if err != nil {
			return err
		}

		if resp.ErrorCode == errCodeTokenExpired || resp.ErrorCode == errCodeTokenInvalid {
			return &domain.AuthenticationError{
				Reason: domain.AuthFailureTokenExpired,
				Err:    fmt.Errorf("cloud rejected token twice (code %d)", resp.ErrorCode),
			}
		}
	}

	if resp.ErrorCode != 0 {
		return &domain.UpstreamError{StatusCode: http.StatusOK, Body: fmt.Sprintf("cloud error %d: %s", resp.ErrorCode, resp.Message)}
	}

	if result == nil || len(resp.Result) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("failed to decode cloud result: %w", err)
	}

	return nil
}

func (i *KasaIntegration) postCloud(ctx context.Context, targetURL, token string, payload any) (cloudResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return cloudResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return cloudResponse{}, err
	}

	req.Header.Set("Content-Type", "application/json")

	q := req.URL.Query()
	q.Set("token", token)
	req.URL.RawQuery = q.Encode()

	httpResp, err := i.httpProvider.GetHTTPClient(i.config).Do(req)
	if err != nil {
		return cloudResponse{}, domain.WrapTransportError(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return cloudResponse{}, domain.WrapTransportError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return cloudResponse{}, &domain.UpstreamError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	var resp cloudResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return cloudResponse{}, fmt.Errorf("failed to decode cloud response: %w", err)
	}

	return resp, nil
}

type cloudDevice struct {
	DeviceID     string `json:"deviceId"`
	Alias        string `json:"alias"`
	DeviceModel  string `json:"deviceModel"`
	DeviceType   string `json:"deviceType"`
	Status       int    `json:"status"`
	AppServerURL string `json:"appServerUrl"`
}

func (i *KasaIntegration) deviceList(ctx context.Context) ([]cloudDevice, error) {
	var listResult struct {
		DeviceList []cloudDevice `json:"deviceList"`
	}

	err := i.cloudRPC(ctx, i.config.BaseURL(), map[string]any{"method": "getDeviceList"}, &listResult)
	if err != nil {
		return nil, err
	}

	return listResult.DeviceList, nil
}

// passthrough relays a device-protocol request through the cloud. The
// response data is itself a JSON document encoded as a string.
func (i *KasaIntegration) passthrough(ctx context.Context, device cloudDevice, request map[string]any, response any) error {
	requestData, err := json.Marshal(request)
	if err != nil {
		return err
	}

	target := device.AppServerURL
	if target == "" {
		target = i.config.BaseURL()
	}

	var passthroughResult struct {
		ResponseData string `json:"responseData"`
	}

	err = i.cloudRPC(ctx, target, map[string]any{
		"method": "passthrough",
		"params": map[string]any{
			"deviceId":    device.DeviceID,
			"requestData": string(requestData),
		},
	}, &passthroughResult)
	if err != nil {
		return err
	}

	if response == nil {
		return nil
	}

	if err := json.Unmarshal([]byte(passthroughResult.ResponseData), response); err != nil {
		return fmt.Errorf("failed to decode passthrough response: %w", err)
	}

	return nil
}

// Devices lists the account's devices and enriches each with its live relay
// state. The listing is required; a device that cannot be reached keeps its
// cloud-reported fields and is flagged with a warning.
func (i *KasaIntegration) Devices(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	devices, err := i.deviceList(ctx)
	if err != nil {
		return domain.MetricResult{}, err
	}

	if len(devices) > maxTrackedDevices {
		devices = devices[:maxTrackedDevices]
	}

	outcomes := domain.EnrichEach(ctx, devices, enrichConcurrent, func(ctx context.Context, device cloudDevice) (sysInfo, error) {
		var infoResp struct {
			System struct {
				GetSysinfo sysInfo `json:"get_sysinfo"`
			} `json:"system"`
		}

		err := i.passthrough(ctx, device, map[string]any{"system": map[string]any{"get_sysinfo": map[string]any{}}}, &infoResp)
		if err != nil {
			return sysInfo{}, err
		}

		return infoResp.System.GetSysinfo, nil
	})

	var warnings []domain.Warning

	entries := make([]map[string]any, 0, len(outcomes))
	online := 0

	for _, outcome := range outcomes {
		if outcome.Item.Status == 1 {
			online++
		}

		entry := map[string]any{
			"deviceId":   outcome.Item.DeviceID,
			"alias":      outcome.Item.Alias,
			"model":      outcome.Item.DeviceModel,
			"deviceType": simplifyDeviceType(outcome.Item.DeviceType),
			"online":     outcome.Item.Status == 1,
		}

		if outcome.Err != nil {
			warnings = append(warnings, domain.Warning{Source: outcome.Item.Alias, Message: outcome.Err.Error()})
		} else {
			entry["isOn"] = outcome.Detail.RelayState == 1
			entry["hasEnergyMonitoring"] = outcome.Detail.hasEmeter()
			entry["rssi"] = outcome.Detail.RSSI
		}

		entries = append(entries, entry)
	}

	return domain.NewMetricResult(map[string]any{
		"total":   len(entries),
		"online":  online,
		"devices": entries,
	}, warnings), nil
}

type sysInfo struct {
	RelayState int    `json:"relay_state"`
	RSSI       int    `json:"rssi"`
	Feature    string `json:"feature"`
}

func (s sysInfo) hasEmeter() bool {
	return bytes.Contains([]byte(s.Feature), []byte("ENE"))
}

type emeterRealtime struct {
	Power     *float64 `json:"power"`
	PowerMW   *float64 `json:"power_mw"`
	Voltage   *float64 `json:"voltage"`
	VoltageMV *float64 `json:"voltage_mv"`
	Current   *float64 `json:"current"`
	CurrentMA *float64 `json:"current_ma"`
	Total     *float64 `json:"total"`
	TotalWH   *float64 `json:"total_wh"`
}

// baseUnit prefers the base-unit field and falls back to the milli-unit
// variant newer firmware reports.
func baseUnit(value *float64, milli *float64) float64 {
	if value != nil {
		return *value
	}

	if milli != nil {
		return *milli / 1000
	}

	return 0
}

type emeterStatEntry struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`

	Energy   *float64 `json:"energy"`
	EnergyWH *float64 `json:"energy_wh"`
}

// kwh reads an accumulated stat in kWh. Older firmware reports "energy" in
// kWh directly, newer firmware "energy_wh" in Wh.
func (e emeterStatEntry) kwh() float64 {
	if e.Energy != nil {
		return *e.Energy
	}

	if e.EnergyWH != nil {
		return *e.EnergyWH / 1000
	}

	return 0
}

type energyReading struct {
	realtime emeterRealtime

	todayEnergy float64
	monthEnergy float64
	statsErr    error
}

// energyStats fetches the accumulated day and month consumption for the
// current date from the device's emeter statistics.
func (i *KasaIntegration) energyStats(ctx context.Context, device cloudDevice) (todayEnergy, monthEnergy float64, err error) {
	now := time.Now()

	var dayResp struct {
		Emeter struct {
			GetDaystat struct {
				DayList []emeterStatEntry `json:"day_list"`
			} `json:"get_daystat"`
		} `json:"emeter"`
	}

	err = i.passthrough(ctx, device, map[string]any{
		"emeter": map[string]any{"get_daystat": map[string]any{"year": now.Year(), "month": int(now.Month())}},
	}, &dayResp)
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range dayResp.Emeter.GetDaystat.DayList {
		if entry.Day == now.Day() {
			todayEnergy = entry.kwh()
			break
		}
	}

	var monthResp struct {
		Emeter struct {
			GetMonthstat struct {
				MonthList []emeterStatEntry `json:"month_list"`
			} `json:"get_monthstat"`
		} `json:"emeter"`
	}

	err = i.passthrough(ctx, device, map[string]any{
		"emeter": map[string]any{"get_monthstat": map[string]any{"year": now.Year()}},
	}, &monthResp)
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range monthResp.Emeter.GetMonthstat.MonthList {
		if entry.Month == int(now.Month()) {
			monthEnergy = entry.kwh()
			break
		}
	}

	return todayEnergy, monthEnergy, nil
}

// Energy reports realtime power draw plus day and month consumption per
// device. The device list is required; devices with a failed realtime call
// are omitted with a warning, and a failed stats call degrades that device's
// accumulated fields to 0 with a warning while the realtime reading survives.
func (i *KasaIntegration) Energy(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	devices, err := i.deviceList(ctx)
	if err != nil {
		return domain.MetricResult{}, err
	}

	if len(devices) > maxTrackedDevices {
		devices = devices[:maxTrackedDevices]
	}

	outcomes := domain.EnrichEach(ctx, devices, enrichConcurrent, func(ctx context.Context, device cloudDevice) (energyReading, error) {
		var emeterResp struct {
			Emeter struct {
				GetRealtime emeterRealtime `json:"get_realtime"`
			} `json:"emeter"`
		}

		err := i.passthrough(ctx, device, map[string]any{"emeter": map[string]any{"get_realtime": map[string]any{}}}, &emeterResp)
		if err != nil {
			return energyReading{}, err
		}

		reading := energyReading{realtime: emeterResp.Emeter.GetRealtime}
		reading.todayEnergy, reading.monthEnergy, reading.statsErr = i.energyStats(ctx, device)

		return reading, nil
	})

	var warnings []domain.Warning

	entries := make([]map[string]any, 0, len(outcomes))
	var totalPower float64

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			warnings = append(warnings, domain.Warning{Source: outcome.Item.Alias, Message: outcome.Err.Error()})
			continue
		}

		if outcome.Detail.statsErr != nil {
			warnings = append(warnings, domain.Warning{Source: outcome.Item.Alias, Message: fmt.Sprintf("emeter stats unavailable: %s", outcome.Detail.statsErr)})
		}

		realtime := outcome.Detail.realtime

		power := baseUnit(realtime.Power, realtime.PowerMW)
		totalPower += power

		entries = append(entries, map[string]any{
			"deviceId":     outcome.Item.DeviceID,
			"alias":        outcome.Item.Alias,
			"currentPower": power,
			"voltage":      baseUnit(realtime.Voltage, realtime.VoltageMV),
			"current":      baseUnit(realtime.Current, realtime.CurrentMA),
			"todayEnergy":  outcome.Detail.todayEnergy,
			"monthEnergy":  outcome.Detail.monthEnergy,
			"totalEnergy":  baseUnit(realtime.Total, realtime.TotalWH),
		})
	}

	return domain.NewMetricResult(map[string]any{
		"totalPower": totalPower,
		"devices":    entries,
	}, warnings), nil
}

// PerformAction switches a device relay. Failures come back as structured
// results.
func (i *KasaIntegration) PerformAction(ctx context.Context, params domain.PerformActionParams) domain.ActionResult {
	var state int

	switch params.ActionType {
	case KasaActionType_PowerOn:
		state = 1
	case KasaActionType_PowerOff:
		state = 0
	default:
		unknownErr := &domain.UnknownActionError{Action: params.ActionType, Known: actionTypes}

		return domain.ActionResult{Success: false, Message: unknownErr.Error()}
	}

	deviceID, _ := params.Params["deviceId"].(string)
	if deviceID == "" {
		return domain.ActionResult{Success: false, Message: "missing required parameter: deviceId"}
	}

	devices, err := i.deviceList(ctx)
	if err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}

	var target *cloudDevice
	for _, device := range devices {
		if device.DeviceID == deviceID {
			target = &device
			break
		}
	}

	if target == nil {
		return domain.ActionResult{Success: false, Message: fmt.Sprintf("device %s not found on this account", deviceID)}
	}

	err = i.passthrough(ctx, *target, map[string]any{
		"system": map[string]any{"set_relay_state": map[string]any{"state": state}},
	}, nil)
	if err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}

	verb := "on"
	if state == 0 {
		verb = "off"
	}

	return domain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("switched %s %s", target.Alias, verb),
		Data:    map[string]any{"deviceId": deviceID, "isOn": state == 1},
	}
}

func simplifyDeviceType(cloudType string) string {
	switch cloudType {
	case "IOT.SMARTBULB":
		return "bulb"
	case "IOT.SMARTPLUGSWITCH":
		return "plug"
	default:
		return "plug"
	}
}
