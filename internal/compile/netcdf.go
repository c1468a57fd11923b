package compile

import (
	"fmt"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
)

const timeUnits = "seconds since 1970-01-01 00:00:00"

// writeNetCDF persists the dataset with dimensions (station, time),
// per-station coordinate variables and CF-style attributes. Both time
// variables share the same epoch encoding and calendar so they serialize
// consistently.
func writeNetCDF(path string, ds *Dataset, sourcePattern string) error {
	nStation := len(ds.Stations)
	nTime := len(ds.Times)
	nameLen := 0
	for _, st := range ds.Stations {
		if len(st.Name) > nameLen {
			nameLen = len(st.Name)
		}
	}

	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	defer nc.Close()

	stationDim, err := nc.AddDim("station", uint64(nStation))
	if err != nil {
		return err
	}
	timeDim, err := nc.AddDim("time", uint64(nTime))
	if err != nil {
		return err
	}
	strDim, err := nc.AddDim("string_length", uint64(nameLen))
	if err != nil {
		return err
	}

	stationVar, err := nc.AddVar("station", netcdf.CHAR, []netcdf.Dim{stationDim, strDim})
	if err != nil {
		return err
	}
	timeVar, err := nc.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return err
	}
	timeLocalVar, err := nc.AddVar("time_local", netcdf.DOUBLE, []netcdf.Dim{stationDim, timeDim})
	if err != nil {
		return err
	}
	latVar, err := nc.AddVar("latitude", netcdf.DOUBLE, []netcdf.Dim{stationDim})
	if err != nil {
		return err
	}
	lonVar, err := nc.AddVar("longitude", netcdf.DOUBLE, []netcdf.Dim{stationDim})
	if err != nil {
		return err
	}
	elevVar, err := nc.AddVar("elevation", netcdf.DOUBLE, []netcdf.Dim{stationDim})
	if err != nil {
		return err
	}
	ghiVar, err := nc.AddVar("GHI", netcdf.DOUBLE, []netcdf.Dim{stationDim, timeDim})
	if err != nil {
		return err
	}
	dhiVar, err := nc.AddVar("DHI", netcdf.DOUBLE, []netcdf.Dim{stationDim, timeDim})
	if err != nil {
		return err
	}
	dniVar, err := nc.AddVar("DNI", netcdf.DOUBLE, []netcdf.Dim{stationDim, timeDim})
	if err != nil {
		return err
	}

	globalAttrs := map[string]string{
		"title":       "Compiled Solar Radiation Data from CAMS ECMWF",
		"institution": "BMKG for WETSA Project",
		"source":      fmt.Sprintf("Compiled from CSV files matching %q", sourcePattern),
		"history":     fmt.Sprintf("Created on %s", time.Now().UTC().Format(time.RFC3339)),
		"comment":     "Data includes GHI, DHI, and DNI for multiple stations in Indonesia.",
	}
	for name, value := range globalAttrs {
		if err := nc.Attr(name).WriteBytes([]byte(value)); err != nil {
			return fmt.Errorf("global attribute %s: %w", name, err)
		}
	}

	varAttrs := []struct {
		v     netcdf.Var
		attrs map[string]string
	}{
		{timeVar, map[string]string{
			"long_name": "Time (UTC)", "standard_name": "time", "axis": "T",
			"units": timeUnits, "calendar": "proleptic_gregorian",
		}},
		{timeLocalVar, map[string]string{
			"long_name":   "Local Time at Station",
			"description": "Calculated local time corresponding to the UTC time dimension.",
			"units":       timeUnits, "calendar": "proleptic_gregorian",
		}},
		{stationVar, map[string]string{"long_name": "Observation Station Name", "cf_role": "timeseries_id"}},
		{latVar, map[string]string{"long_name": "Latitude", "units": "degrees_north", "standard_name": "latitude"}},
		{lonVar, map[string]string{"long_name": "Longitude", "units": "degrees_east", "standard_name": "longitude"}},
		{elevVar, map[string]string{"long_name": "Elevation", "units": "m", "positive": "up"}},
		{ghiVar, map[string]string{"long_name": "Global Horizontal Irradiance", "units": "Wh/m^2", "standard_name": "surface_solar_radiation_downwards"}},
		{dhiVar, map[string]string{"long_name": "Diffuse Horizontal Irradiance", "units": "Wh/m^2", "standard_name": "diffuse_solar_radiation"}},
		{dniVar, map[string]string{"long_name": "Direct Normal Irradiance", "units": "Wh/m^2", "standard_name": "direct_solar_radiation"}},
	}
	for _, va := range varAttrs {
		for name, value := range va.attrs {
			if err := va.v.Attr(name).WriteBytes([]byte(value)); err != nil {
				return fmt.Errorf("variable attribute %s: %w", name, err)
			}
		}
	}

	names := make([]byte, nStation*nameLen)
	for i, st := range ds.Stations {
		copy(names[i*nameLen:(i+1)*nameLen], st.Name)
	}
	if err := stationVar.WriteBytes(names); err != nil {
		return fmt.Errorf("write station names: %w", err)
	}

	times := make([]float64, nTime)
	for i, t := range ds.Times {
		times[i] = float64(t.Unix())
	}
	if err := timeVar.WriteFloat64s(times); err != nil {
		return fmt.Errorf("write time: %w", err)
	}

	lat := make([]float64, nStation)
	lon := make([]float64, nStation)
	elev := make([]float64, nStation)
	for i, st := range ds.Stations {
		lat[i], lon[i], elev[i] = st.Latitude, st.Longitude, st.Elevation
	}
	if err := latVar.WriteFloat64s(lat); err != nil {
		return fmt.Errorf("write latitude: %w", err)
	}
	if err := lonVar.WriteFloat64s(lon); err != nil {
		return fmt.Errorf("write longitude: %w", err)
	}
	if err := elevVar.WriteFloat64s(elev); err != nil {
		return fmt.Errorf("write elevation: %w", err)
	}

	grids := []struct {
		v    netcdf.Var
		grid [][]float64
	}{
		{timeLocalVar, ds.TimeLocal},
		{ghiVar, ds.GHI},
		{dhiVar, ds.DHI},
		{dniVar, ds.DNI},
	}
	for _, g := range grids {
		if err := g.v.WriteFloat64s(flatten(g.grid, nTime)); err != nil {
			return fmt.Errorf("write grid variable: %w", err)
		}
	}

	return nil
}

// flatten lays a [station][time] grid out row-major for the C library.
func flatten(grid [][]float64, nTime int) []float64 {
	out := make([]float64, 0, len(grid)*nTime)
	for _, row := range grid {
		out = append(out, row...)
	}
	return out
}
