// Package domain models hourly air-quality data published by ARSO, the
// Slovenian Environment Agency.
//
// # Data Source
//
// ARSO publishes the latest hourly readings of its automatic monitoring
// network as a single XML document at
// https://www.arso.gov.si/xml/zrak/ones_zrak_urni_podatki_zadnji.xml. The
// document is unversioned in practice and loosely structured; the service
// fetches it on a schedule, parses stations and readings out of it, merges
// them by station code and persists the result.
//
// # Feed Layout
//
//	<arsopodatki verzija="1.0">
//	  <vir>Agencija RS za okolje</vir>
//	  <predlagan_zajem>…</predlagan_zajem>
//	  <predlagan_zajem_perioda>60</predlagan_zajem_perioda>
//	  <datum_priprave>01-01-2025 @ 10:30</datum_priprave>
//	  <postaja sifra="E403" wgs84_sirina="46.065" wgs84_dolzina="14.517"
//	           d96_e="462400" d96_n="101800" nadm_visina="299">
//	    <merilno_mesto>LJ Bežigrad</merilno_mesto>
//	    <datum_od>2025-01-01 09:00</datum_od>
//	    <datum_do>2025-01-01 10:00</datum_do>
//	    <pm10>24</pm10>
//	    <pm2.5>17</pm2.5>
//	    <co>0.8</co>
//	  </postaja>
//	</arsopodatki>
//
// Station elements are matched at any depth. The same element carries both
// the station metadata (attributes and <merilno_mesto>) and its reading for
// the current window, so one document feeds both [ParseStations] and
// [ParseMeasurements].
//
// # Value Conventions
//
// Reading timestamps use "YYYY-MM-DD HH:MM" and the root preparation time uses
// "DD-MM-YYYY @ HH:MM". Neither carries a zone; both are local Slovenian time.
//
// Pollutant values are plain numbers, empty, or a below-detection-limit token
// such as "<2". A "<X" token is read as X. Carbon monoxide and benzene are
// fractional (co in mg/m³); every other pollutant is an integer in µg/m³.
//
// Station names sometimes arrive with literal \uXXXX escapes instead of the
// characters themselves ("LJ Be\u017eigrad"); [NormalizeUnicode] repairs them.
//
// # Status Classification
//
// Station status is derived from the latest reading using EU-style limits
// (good below the first bound, moderate below the second, poor otherwise):
//
//	pm2_5: 15 / 25   pm10: 20 / 50   no2: 40 / 80
//	o3:    80 / 120  so2:  20 / 50   co:  1.0 / 1.5
//
// See [ClassifyStatus].
package domain
