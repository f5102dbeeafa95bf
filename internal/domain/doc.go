// Package domain models surf spots, NOAA sensor stations, their latest
// readings, and the link and score records the engine produces.
//
// # Data Source
//
// Station observations come from the NOAA National Data Buoy Center (NDBC)
// "latest_obs" table, https://www.ndbc.noaa.gov/data/latest_obs/latest_obs.txt.
// An upstream collector scrapes the table and publishes each row as flat JSON
// keyed by the NDBC column names to the observation topic.
//
// # NDBC Conventions
//
// Columns used:
//
//	STN   station id, e.g. "46221" (offshore buoy) or "SMOC1" (C-MAN / shore)
//	LAT   latitude, decimal degrees
//	LON   longitude, decimal degrees (negative west)
//	YYYY MM DD hh mm   observation time, UTC
//	WDIR  wind direction, degrees true, direction the wind blows FROM
//	WSPD  sustained wind speed, m/s
//	GST   peak gust, m/s
//	WVHT  significant wave height, metres
//	DPD   dominant wave period, seconds
//	ATMP  air temperature, °C
//	WTMP  water temperature, °C
//
// Missing values:
//
//	"MM" is the NDBC sentinel for a missing measurement. Empty strings are
//	treated the same way. A missing value is an absent reading, never zero.
//
// Units are converted at parse time: m/s to knots (×1.94384) and metres to
// feet (×3.28084). NDBC reports a calm as WDIR 0 and occasionally north as
// 360; directions are folded into [0, 360).
//
// # Station Kinds
//
// A station that reports wave height is a swell sensor; a station that
// reports wind speed and direction is a wind sensor. Many offshore buoys are
// both, in which case the station appears once per kind.
package domain
