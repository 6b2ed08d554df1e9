package config

import (
	"reflect"
)

// DeepMerge overlays the non-zero fields of src onto dst. Both must be
// pointers to values of the same type. Structs merge field by field, maps
// key by key, and a non-empty slice replaces the destination slice.
func DeepMerge(dst, src any) {
	d := reflect.ValueOf(dst)
	s := reflect.ValueOf(src)
	if d.Kind() != reflect.Pointer || s.Kind() != reflect.Pointer || d.IsNil() || s.IsNil() {
		return
	}
	if d.Type() != s.Type() {
		return
	}
	merge(d.Elem(), s.Elem())
}

func merge(dst, src reflect.Value) {
	if !dst.CanSet() || !src.IsValid() {
		return
	}

	switch dst.Kind() {
	case reflect.Struct:
		for i := 0; i < dst.NumField(); i++ {
			merge(dst.Field(i), src.Field(i))
		}
	case reflect.Map:
		mergeMap(dst, src)
	case reflect.Slice:
		if src.Len() > 0 {
			dst.Set(src)
		}
	case reflect.Pointer:
		if src.IsNil() {
			return
		}
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		merge(dst.Elem(), src.Elem())
	default:
		if !src.IsZero() {
			dst.Set(src)
		}
	}
}

func mergeMap(dst, src reflect.Value) {
	if src.IsNil() {
		return
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(dst.Type(), src.Len()))
	}

	iter := src.MapRange()
	for iter.Next() {
		key, value := iter.Key(), iter.Value()
		existing := dst.MapIndex(key)
		if !existing.IsValid() {
			dst.SetMapIndex(key, value)
			continue
		}

		switch value.Kind() {
		case reflect.Struct, reflect.Map:
			merged := reflect.New(existing.Type()).Elem()
			merged.Set(existing)
			merge(merged, value)
			dst.SetMapIndex(key, merged)
		default:
			dst.SetMapIndex(key, value)
		}
	}
}
