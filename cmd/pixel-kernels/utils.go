package main

import (
	"encoding/json"
	"fmt"
)

// Most commands need this, so... yeah
func PrintJson(obj interface{}) {
	rawjson, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("Couldn't serialize json")
	}
	fmt.Println(string(rawjson))
}
