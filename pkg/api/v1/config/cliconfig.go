package config

import (
	"os"
	"strings"
	"sync"
	"time"
)

type CliConfig struct {
	ConfigFile     string `default:"config.json"`
	InputFile      string `default:"inputs.json"`
	StaticDataFile string `default:"static_data.json"`
	ResultsDir     string `default:"results"`
	HealthFile     string `default:"/tmp/controlkit-health"`

	HTTPAddress string `default:":8080"`

	MQTTAddress     string `default:":1883"`
	MQTTTopicPrefix string

	FiwareURL         string `default:"http://localhost:1026"`
	FiwareService     string
	FiwareServicePath string `default:"/"`
	FiwareToken       string
	FiwareTokenFile   string

	ModbusAddress string
	ModbusSlaveID int    `default:"1"`
	MbusDevice    string `default:"/dev/ttyAMA0"`

	RequestTimeout time.Duration `default:"30s"`

	LogLevel string `default:"info"`

	mutex sync.RWMutex
}

func (c *CliConfig) Token() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.FiwareToken
}

func (c *CliConfig) SetToken(t string) {
	c.mutex.Lock()
	c.FiwareToken = strings.TrimSpace(t)
	c.mutex.Unlock()
}

// LoadToken reads the FIWARE bearer token from FiwareTokenFile if it exists.
func (c *CliConfig) LoadToken() error {
	if c.FiwareTokenFile == "" {
		return nil
	}
	if _, err := os.Stat(c.FiwareTokenFile); err == nil {
		b, err := os.ReadFile(c.FiwareTokenFile)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return nil // dont load empty token
		}

		c.SetToken(string(b))
	}
	return nil
}
