package config

var AppVersion = "DEVELOPMENT"

const (
	AppName = "atomtile"
	LogFile = "core.log"
	CfgFile = "config.toml"
)
