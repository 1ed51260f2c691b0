package main

//go:generate swag init -g cmd/tradeagents/docs.go -o docs

// @title           TradeAgents API
// @version         0.1.0
// @description     Agent pipeline status, pipeline rows, memories and feature switches.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
