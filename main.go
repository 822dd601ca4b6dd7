package main

import "log"

func main() {
	log.SetFlags(0)

	args := getArgs()
	if args == nil {
		return
	}

	cb, err := NewCatbox(args.ConfigFile)
	if err != nil {
		log.Fatal(err)
	}

	if len(args.ServerName) > 0 {
		cb.Config.ServerName = args.ServerName
	}
	if len(args.SID) > 0 {
		cb.Config.TS6SID = args.SID
	}
	if args.NoRateLimit {
		cb.Config.RateLimit = RateLimitConfig{}
		cb.connAdmission = newConnAdmissionLimiter(0, 0)
	}
	if args.NoWebIRC {
		cb.Config.WebIRCGateways = nil
	}

	if err := cb.Start(); err != nil {
		log.Fatal(err)
	}

	log.Printf("Server shutdown cleanly.")
}
