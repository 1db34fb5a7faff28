package ratelimit

import "time"

// Config configures the request executor.
type Config struct {
	// GlobalRate is the maximum number of requests dispatched per second.
	// Default: 30
	GlobalRate int `mapstructure:"global_rate" validate:"omitempty,min=1" yaml:"global_rate"`

	// PerChatInterval is the minimum spacing between two requests that share
	// a key (a chat id). Default: 1s
	PerChatInterval time.Duration `mapstructure:"per_chat_interval" validate:"omitempty,gt=0" yaml:"per_chat_interval"`

	// QueueSize bounds the number of pending requests. Default: 1000
	QueueSize int `mapstructure:"queue_size" validate:"omitempty,min=1" yaml:"queue_size"`

	// Workers is the size of the execution pool. Default: 8
	Workers int `mapstructure:"workers" validate:"omitempty,min=1" yaml:"workers"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.GlobalRate == 0 {
		c.GlobalRate = 30
	}
	if c.PerChatInterval == 0 {
		c.PerChatInterval = time.Second
	}
	if c.QueueSize == 0 {
		c.QueueSize = 1000
	}
	if c.Workers == 0 {
		c.Workers = 8
	}
}

func (c *Config) dispatchInterval() time.Duration {
	return time.Second / time.Duration(c.GlobalRate)
}
