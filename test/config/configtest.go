package config

import (
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
)

type MockConfigHook struct {
	GetStringMock      func(key string) string
	GetBoolMock        func(key string) bool
	GetIntMock         func(key string) int
	GetIntOrElseMock   func(key string, orElse int) int
	GetDurationMock    func(key string) time.Duration
	SaveMock           func() error
	BindFlagMock       func(string, *pflag.Flag) error
	GetProfileMock     func() string
	GetStringSliceMock func(key string) []string
	SetStringMock      func(k string, v string)
	SetMock            func(k string, v any)
	GetMock            func(k string) any
	GetPathMock        func() string
}

// NewMapConfigHook returns a mock whose reads and writes go to values.
// Missing keys read as zero values.
func NewMapConfigHook(values map[string]any) *MockConfigHook {
	if values == nil {
		values = map[string]any{}
	}
	return &MockConfigHook{
		GetStringMock: func(key string) string { return cast.ToString(values[key]) },
		GetBoolMock:   func(key string) bool { return cast.ToBool(values[key]) },
		GetIntMock:    func(key string) int { return cast.ToInt(values[key]) },
		GetIntOrElseMock: func(key string, orElse int) int {
			if v, ok := values[key]; ok {
				return cast.ToInt(v)
			}
			return orElse
		},
		GetDurationMock:    func(key string) time.Duration { return cast.ToDuration(values[key]) },
		SaveMock:           func() error { return nil },
		BindFlagMock:       func(string, *pflag.Flag) error { return nil },
		GetProfileMock:     func() string { return "default" },
		GetStringSliceMock: func(key string) []string { return cast.ToStringSlice(values[key]) },
		SetStringMock:      func(k string, v string) { values[k] = v },
		SetMock:            func(k string, v any) { values[k] = v },
		GetMock:            func(k string) any { return values[k] },
		GetPathMock:        func() string { return "" },
	}
}

func (m *MockConfigHook) Save() error {
	return m.SaveMock()
}

func (m *MockConfigHook) GetString(key string) string {
	return m.GetStringMock(key)
}

func (m *MockConfigHook) GetBool(key string) bool {
	return m.GetBoolMock(key)
}

func (m *MockConfigHook) GetInt(key string) int {
	return m.GetIntMock(key)
}

func (m *MockConfigHook) GetIntOrElse(key string, orElse int) int {
	if m.GetIntOrElseMock != nil {
		return m.GetIntOrElseMock(key, orElse)
	}
	return orElse
}

func (m *MockConfigHook) GetDuration(key string) time.Duration {
	if m.GetDurationMock != nil {
		return m.GetDurationMock(key)
	}
	return 0
}

func (m *MockConfigHook) BindFlag(configPath string, f *pflag.Flag) error {
	return m.BindFlagMock(configPath, f)
}

func (m *MockConfigHook) GetProfile() string {
	return m.GetProfileMock()
}

func (m *MockConfigHook) GetStringSlice(key string) []string {
	return m.GetStringSliceMock(key)
}

func (m *MockConfigHook) SetString(k string, v string) {
	m.SetStringMock(k, v)
}

func (m *MockConfigHook) Set(k string, v any) {
	m.SetMock(k, v)
}

func (m *MockConfigHook) Get(k string) any {
	return m.GetMock(k)
}

func (m *MockConfigHook) GetPath() string {
	return m.GetPathMock()
}
