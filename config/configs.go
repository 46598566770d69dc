package config

import (
	"encoding/xml"
	"fmt"
	"os"
)

// 10.0.4.16:8436 本地调试时改为 127.0.0.1:8436
var MainRouter string
var MainOutRouter string
var DSN string
var DBType string
var Dbname string
var Download string
var Upload string
var GeorefURL string
var SignedTTL int
var MainConfig Config

type Config struct {
	XMLName       xml.Name `xml:"config"`
	MainRouter    string   `xml:"MainRouter"`
	MainOutRouter string   `xml:"MainOutRouter"`
	DBType        string   `xml:"dbtype"`
	Dbname        string   `xml:"dbname"`
	Host          string   `xml:"host"`
	Port          string   `xml:"port"`
	Username      string   `xml:"user"`
	Password      string   `xml:"password"`
	Download      string   `xml:"download"`
	Upload        string   `xml:"upload"`
	GeorefURL     string   `xml:"georef"`
	SignedTTL     int      `xml:"signedttl"`
}

func init() {

	xmlFile, err := os.Open("config.xml")
	if err != nil {
		fmt.Println("Error  opening  file:", err)
	} else {
		defer xmlFile.Close()
		xmlDecoder := xml.NewDecoder(xmlFile)
		err = xmlDecoder.Decode(&MainConfig)
		if err != nil {
			fmt.Println("Error  decoding  XML:", err)
		}
	}

	// 未配置时的默认值，保证测试环境下也能启动
	if MainConfig.MainRouter == "" {
		MainConfig.MainRouter = "127.0.0.1:8436"
	}
	if MainConfig.MainOutRouter == "" {
		MainConfig.MainOutRouter = "http://" + MainConfig.MainRouter
	}
	if MainConfig.DBType == "" {
		MainConfig.DBType = "sqlite"
	}
	if MainConfig.Dbname == "" {
		MainConfig.Dbname = "tracemap"
	}
	if MainConfig.Download == "" {
		MainConfig.Download = "./Download"
	}
	if MainConfig.Upload == "" {
		MainConfig.Upload = "./Upload"
	}
	if MainConfig.SignedTTL == 0 {
		MainConfig.SignedTTL = 300
	}

	MainRouter = MainConfig.MainRouter
	MainOutRouter = MainConfig.MainOutRouter
	DBType = MainConfig.DBType
	Dbname = MainConfig.Dbname
	Download = MainConfig.Download
	Upload = MainConfig.Upload
	GeorefURL = MainConfig.GeorefURL
	SignedTTL = MainConfig.SignedTTL

	switch DBType {
	case "postgres":
		DSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC", MainConfig.Host, MainConfig.Username, MainConfig.Password, MainConfig.Dbname, MainConfig.Port)
	case "mysql":
		DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC", MainConfig.Username, MainConfig.Password, MainConfig.Host, MainConfig.Port, MainConfig.Dbname)
	default:
		DSN = MainConfig.Dbname + ".db"
	}
}
