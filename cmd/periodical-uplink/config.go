package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

// Profile is the on-disk device profile. Command-line flags override
// any field set here.
type Profile struct {
	DevEUI  string `json:"deveui"`
	JoinEUI string `json:"joineui"`
	AppKey  string `json:"appkey"`
	GPSPort string `json:"gps_port"`
	Period  uint   `json:"period_s"`
	Port    uint   `json:"fport"`
}

// loadProfile reads a JSON device profile.
func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return &p, nil
}

// apply fills unset flag values from the profile.
func (p *Profile) apply() {
	if *devEUI == "" {
		*devEUI = p.DevEUI
	}
	if *joinEUI == "" {
		*joinEUI = p.JoinEUI
	}
	if *appKey == "" {
		*appKey = p.AppKey
	}
	if p.GPSPort != "" && !flagWasSet("gps") {
		*gpsPort = p.GPSPort
	}
	if p.Period != 0 && !flagWasSet("period") {
		*period = p.Period
	}
	if p.Port != 0 && !flagWasSet("port") {
		*port = p.Port
	}
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
