package bump

import (
	"fmt"
	"unsafe"
)

// Example demonstrates basic arena usage
func Example() {
	// Create a new arena with the default root block size
	a := New(0)
	defer a.Release() // Always clean up

	// Allocate raw bytes
	buf, _ := a.Allocate(1024, 8)
	fmt.Printf("Allocated buffer of size: %d\n", len(buf))

	// Allocate a typed value (zeroed)
	ptr, _ := Alloc[int](a)
	*ptr = 42
	fmt.Printf("Allocated int with value: %d\n", *ptr)

	// Allocate a slice
	slice, _ := AllocSlice[int](a, 5)
	for i := range slice {
		slice[i] = i * 2
	}
	fmt.Printf("Allocated slice: %v\n", slice)

	// Check memory usage
	fmt.Printf("Memory in use: %d bytes\n", a.SizeInUse())
	fmt.Printf("Utilization: %.2f%%\n", a.Utilization()*100)

	// Reset for reuse
	a.Reset()
	fmt.Printf("After reset, memory in use: %d bytes\n", a.SizeInUse())

	// Output:
	// Allocated buffer of size: 1024
	// Allocated int with value: 42
	// Allocated slice: [0 2 4 6 8]
	// Memory in use: 1072 bytes
	// Utilization: 26.17%
	// After reset, memory in use: 0 bytes
}

// ExampleArena_Checkpoint shows that rolling back keeps grown blocks for reuse
func ExampleArena_Checkpoint() {
	a := New(64)
	_, _ = a.Allocate(40, 8)

	cp := a.Checkpoint()
	_, _ = a.Allocate(40, 8) // does not fit, grows the arena
	fmt.Println("blocks:", a.NumBlocks())

	a.Restore(cp)
	fmt.Println("remaining:", a.RemainingBytes())
	fmt.Println("blocks:", a.NumBlocks())

	// Output:
	// blocks: 2
	// remaining: 24
	// blocks: 2
}

// ExampleScoped demonstrates scratch memory bound to a function scope
func ExampleScoped() {
	a := New(0)
	defer a.Release()

	err := Scoped(a, func(g *Guard) error {
		row, err := AllocSliceZeroed[int64](g, 4)
		if err != nil {
			return err
		}
		for i := range row {
			row[i] = int64(i * i)
		}
		fmt.Println(row)
		return FreeSlice(g, row)
	})
	fmt.Println(err, a.SizeInUse())

	// Output:
	// [0 1 4 9]
	// <nil> 0
}

// ExampleBucket demonstrates size-classed reuse
func ExampleBucket() {
	b := NewBucket(New(0))
	defer b.Release()

	buf, _ := b.Allocate(10, 8)
	fmt.Println(len(buf), cap(buf))

	_ = b.Deallocate(buf, 10, 8)
	again, _ := b.Allocate(10, 8)
	fmt.Println(&again[0] == &buf[0])

	// Output:
	// 10 16
	// true
}

// ExampleFormatter demonstrates formatting straight into arena memory
func ExampleFormatter() {
	a := New(0)
	defer a.Release()

	f := NewFormatter(a, WithSeparator(' '))
	for i := 1; i <= 3; i++ {
		_, _ = f.Append("item-%d", i)
	}
	fmt.Printf("%q\n", f.Collect().String())

	// Output:
	// "item-1 item-2 item-3 "
}

// ExampleArena_webServer demonstrates arena usage in a web server context
func ExampleArena_webServer() {
	// Simulate a request handler that uses arena for temporary allocations
	handleRequest := func(requestID int) {
		// Create arena for this request
		a := New(4096)
		defer a.Release()

		// Allocate temporary objects for request processing
		requestData, _ := AllocSlice[byte](a, 1024)
		responseBuffer, _ := AllocSlice[byte](a, 2048)

		// Simulate processing
		copy(requestData, []byte("request data"))
		copy(responseBuffer, []byte("response data"))

		fmt.Printf("Request %d processed\n", requestID)
		fmt.Printf("Arena utilization: %.1f%%\n", a.Utilization()*100)
	}

	// Simulate multiple requests
	for i := 1; i <= 3; i++ {
		handleRequest(i)
	}

	// Output:
	// Request 1 processed
	// Arena utilization: 75.0%
	// Request 2 processed
	// Arena utilization: 75.0%
	// Request 3 processed
	// Arena utilization: 75.0%
}

// ExampleArena_Reset demonstrates arena reuse with Reset
func ExampleArena_Reset() {
	a := New(1024)
	defer a.Release()

	for round := 1; round <= 3; round++ {
		// Allocate memory for this round
		for i := 0; i < 5; i++ {
			_, _ = Alloc[int64](a)
		}

		fmt.Printf("Round %d - Memory in use: %d bytes\n", round, a.SizeInUse())

		// Reset arena for next round
		a.Reset()
	}

	// Output:
	// Round 1 - Memory in use: 40 bytes
	// Round 2 - Memory in use: 40 bytes
	// Round 3 - Memory in use: 40 bytes
}

// ExampleArenaMetrics demonstrates monitoring arena usage
func ExampleArenaMetrics() {
	a := New(1024)
	defer a.Release()

	// Allocate various sizes to see metrics
	_, _ = a.Allocate(100, 8)
	_, _ = Alloc[int64](a)
	_, _ = AllocSlice[int32](a, 50)

	metrics := a.Metrics()
	fmt.Printf("Metrics:\n")
	fmt.Printf("  Size in use: %d bytes\n", metrics.SizeInUse)
	fmt.Printf("  Capacity: %d bytes\n", metrics.Capacity)
	fmt.Printf("  Blocks: %d\n", metrics.NumBlocks)
	fmt.Printf("  Root size: %d bytes\n", metrics.RootSize)
	fmt.Printf("  Utilization: %.1f%%\n", metrics.Utilization*100)

	// Output:
	// Metrics:
	//   Size in use: 312 bytes
	//   Capacity: 1024 bytes
	//   Blocks: 1
	//   Root size: 1024 bytes
	//   Utilization: 30.5%
}

// ExampleArena_alignment demonstrates that allocations are properly aligned
func ExampleArena_alignment() {
	a := New(1024)
	defer a.Release()

	// Allocate different types to show alignment
	ptr1, _ := Alloc[int8](a)
	ptr2, _ := Alloc[int64](a) // 8-byte aligned
	ptr3, _ := Alloc[int32](a) // 4-byte aligned

	fmt.Printf("int8 address alignment: %d\n", uintptr(unsafe.Pointer(ptr1))%8)
	fmt.Printf("int64 address alignment: %d\n", uintptr(unsafe.Pointer(ptr2))%8)
	fmt.Printf("int32 address alignment: %d\n", uintptr(unsafe.Pointer(ptr3))%4)

	// Output:
	// int8 address alignment: 0
	// int64 address alignment: 0
	// int32 address alignment: 0
}
